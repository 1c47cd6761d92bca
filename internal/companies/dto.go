package companies

// CompanyInput is the request body for create and update.
type CompanyInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type listResponse struct {
	Companies []Summary `json:"companies"`
}

type companyResponse struct {
	Company any `json:"company"`
}

type statusResponse struct {
	Status string `json:"status"`
}
