package service

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/medreg/patient-registry/database"
	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/util/metrics"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageSize is the number of patients shown per listing page.
const PageSize = 5

// MaxFieldLength bounds the name and condition fields, in characters.
const MaxFieldLength = 100

var ErrPatientNotFound = errors.New("patient not found")

// sortColumns maps the accepted sort parameters onto column names.
var sortColumns = map[string]string{
	"id":        "id",
	"name":      "name",
	"age":       "age",
	"condition": "condition",
}

// ListQuery selects one page of the patient listing.
type ListQuery struct {
	Page  int
	Sort  string
	Order string
	Term  string
}

// NewListQuery builds a query from raw request parameters. Unknown sort
// fields or directions fall back to id/asc and bad pages to page 1.
func NewListQuery(page, sort, order string) ListQuery {
	q := ListQuery{Page: 1, Sort: "id", Order: "asc"}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		q.Page = n
	}
	if _, ok := sortColumns[sort]; ok {
		q.Sort = sort
	}
	if order == "asc" || order == "desc" {
		q.Order = order
	}
	return q
}

func (q ListQuery) orderBy() clause.OrderByColumn {
	column, ok := sortColumns[q.Sort]
	if !ok {
		column = "id"
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   q.Order == "desc",
	}
}

func (q ListQuery) offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * PageSize
}

// PatientPage is one page of patients plus what the pager needs.
type PatientPage struct {
	Patients   []model.Patient
	Total      int64
	Page       int
	TotalPages int
	Sort       string
	Order      string
	Term       string
}

func (p *PatientPage) HasPrev() bool { return p.Page > 1 }
func (p *PatientPage) HasNext() bool { return p.Page < p.TotalPages }
func (p *PatientPage) PrevPage() int { return p.Page - 1 }
func (p *PatientPage) NextPage() int { return p.Page + 1 }

// TotalPages is ceil(total / PageSize).
func TotalPages(total int64) int {
	return int((total + PageSize - 1) / PageSize)
}

// ValidationError is a rejected patient form. Message is shown to the user
// and Category selects how it is styled.
type ValidationError struct {
	Message  string
	Category string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation messages. Controllers translate them before display.
const (
	MsgFieldsRequired = "All fields are required."
	MsgAgeNotNumber   = "Age must be a number."
	MsgAgeNotPositive = "Age must be a positive number."
	MsgFieldsTooLong  = "Name and condition must be under 100 characters."
)

// ValidatePatient checks a submitted patient form and returns the record to store.
func ValidatePatient(name, age, condition string) (*model.Patient, error) {
	name = strings.TrimSpace(name)
	age = strings.TrimSpace(age)
	condition = strings.TrimSpace(condition)

	if name == "" || age == "" || condition == "" {
		return nil, &ValidationError{Message: MsgFieldsRequired, Category: "warning"}
	}
	n, err := strconv.Atoi(age)
	if err != nil {
		return nil, &ValidationError{Message: MsgAgeNotNumber, Category: "info"}
	}
	if n <= 0 {
		return nil, &ValidationError{Message: MsgAgeNotPositive, Category: "info"}
	}
	if utf8.RuneCountInString(name) > MaxFieldLength || utf8.RuneCountInString(condition) > MaxFieldLength {
		return nil, &ValidationError{Message: MsgFieldsTooLong, Category: "warning"}
	}
	return &model.Patient{Name: name, Age: n, Condition: condition}, nil
}

type PatientService struct{}

// List returns one page of all patients.
func (s *PatientService) List(q ListQuery) (*PatientPage, error) {
	q.Term = ""
	return s.page(database.GetDB().Model(&model.Patient{}), q)
}

// Search returns one page of patients whose name or condition contains
// q.Term, ignoring case. An empty term matches everyone.
func (s *PatientService) Search(q ListQuery) (*PatientPage, error) {
	tx := database.GetDB().Model(&model.Patient{})
	if q.Term != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Term)) + "%"
		tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER("condition") LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	return s.page(tx, q)
}

func (s *PatientService) page(tx *gorm.DB, q ListQuery) (*PatientPage, error) {
	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	patients := make([]model.Patient, 0, PageSize)
	err := tx.Session(&gorm.Session{}).
		Order(q.orderBy()).
		Limit(PageSize).
		Offset(q.offset()).
		Find(&patients).Error
	if err != nil {
		return nil, err
	}

	return &PatientPage{
		Patients:   patients,
		Total:      total,
		Page:       q.Page,
		TotalPages: TotalPages(total),
		Sort:       q.Sort,
		Order:      q.Order,
		Term:       q.Term,
	}, nil
}

// escapeLike makes the LIKE wildcards in term match literally.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

func (s *PatientService) Get(id int) (*model.Patient, error) {
	patient := &model.Patient{}
	err := database.GetDB().First(patient, id).Error
	if database.IsNotFound(err) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *PatientService) Add(p *model.Patient) error {
	p.Id = 0
	if err := database.GetDB().Create(p).Error; err != nil {
		return err
	}
	metrics.PatientWrites.WithLabelValues("add").Inc()
	return nil
}

// Update replaces every field of patient id with those of p.
func (s *PatientService) Update(id int, p *model.Patient) error {
	err := database.GetDB().Model(&model.Patient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":      p.Name,
			"age":       p.Age,
			"condition": p.Condition,
		}).Error
	if err != nil {
		return err
	}
	metrics.PatientWrites.WithLabelValues("update").Inc()
	return nil
}

// Delete removes patient id. Deleting a missing patient is not an error.
func (s *PatientService) Delete(id int) error {
	if err := database.GetDB().Delete(&model.Patient{}, id).Error; err != nil {
		return err
	}
	metrics.PatientWrites.WithLabelValues("delete").Inc()
	return nil
}
