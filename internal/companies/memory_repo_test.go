package companies

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memoryRepo mimics the postgres repository, including the companies.name
// unique and not-null constraints.
type memoryRepo struct {
	mu        sync.Mutex
	order     []string
	companies map[string]Company
	invoices  map[string][]int64

	listCalls int
	getCalls  int
	listErr   error
	existsErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		companies: make(map[string]Company),
		invoices:  make(map[string][]int64),
	}
}

// seededRepo holds the reference fixture: apple with invoices 1 and 2, ibm with 3.
func seededRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.put(Company{Code: "apple", Name: "Apple", Description: "Maker of OSX."})
	repo.put(Company{Code: "ibm", Name: "IBM", Description: "Big blue."})
	repo.invoices["apple"] = []int64{1, 2}
	repo.invoices["ibm"] = []int64{3}
	return repo
}

func (m *memoryRepo) put(c Company) {
	m.order = append(m.order, c.Code)
	m.companies[c.Code] = c
}

func (m *memoryRepo) nameTaken(name, except string) bool {
	for code, c := range m.companies {
		if code != except && c.Name == name {
			return true
		}
	}
	return false
}

func (m *memoryRepo) List(ctx context.Context) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Summary
	for _, code := range m.order {
		c := m.companies[code]
		out = append(out, Summary{Code: c.Code, Name: c.Name})
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, code string) (Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	c, ok := m.companies[code]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) InvoiceIDs(ctx context.Context, code string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]int64(nil), m.invoices[code]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryRepo) Exists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.companies[code]
	return ok, nil
}

func (m *memoryRepo) Create(ctx context.Context, company Company) (Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[company.Code]; ok {
		return Company{}, fmt.Errorf("%w (companies_code_key)", ErrDuplicate)
	}
	if m.nameTaken(company.Name, "") {
		return Company{}, fmt.Errorf("%w (companies_name_key)", ErrDuplicate)
	}
	m.put(company)
	return company, nil
}

func (m *memoryRepo) Update(ctx context.Context, code string, in CompanyInput) (Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[code]
	if !ok {
		return Company{}, ErrNotFound
	}
	if in.Name == "" {
		return Company{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if m.nameTaken(in.Name, code) {
		return Company{}, fmt.Errorf("%w (companies_name_key)", ErrDuplicate)
	}
	c.Name = in.Name
	c.Description = in.Description
	m.companies[code] = c
	return c, nil
}

func (m *memoryRepo) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[code]; !ok {
		return ErrNotFound
	}
	delete(m.companies, code)
	delete(m.invoices, code)
	for i, c := range m.order {
		if c == code {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (p *recordingPublisher) PublishCompanyChanged(ctx context.Context, change Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) recorded() []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Change(nil), p.changes...)
}
