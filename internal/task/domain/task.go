package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// TitleMaxLength es el máximo de caracteres (no bytes) de un título.
const TitleMaxLength = 200

// MaxHours acota allocated_hours y time_spent. Con este tope el redondeo y la suma
// de estadísticas nunca desbordan a +Inf.
const MaxHours = 1_000_000

// IsValid indica si el estado pertenece al conjunto permitido.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task es una tarea con un presupuesto de horas. TimeSpent y AllocatedHours están en horas.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	AllocatedHours float64    `json:"allocated_hours"`
	TimeSpent      float64    `json:"time_spent"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TaskPatch es una actualización parcial: nil significa "sin cambios".
type TaskPatch struct {
	Title          *string
	Status         *TaskStatus
	AllocatedHours *float64
	TimeSpent      *float64
}

// IsEmpty indica que el patch no toca ningún campo.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Status == nil && p.AllocatedHours == nil && p.TimeSpent == nil
}

// NewTask valida los datos de entrada y construye una tarea nueva del propietario.
// Si status es nil la tarea empieza en 'todo'.
func NewTask(ownerID uuid.UUID, title string, allocatedHours float64, status *TaskStatus) (*Task, error) {
	verr := sharedDomain.NewValidationError(ErrInvalidTask)

	title = strings.TrimSpace(title)
	validateTitle(verr, title)
	validateHours(verr, "allocated_hours", allocatedHours)

	st := TaskTodo
	if status != nil {
		st = *status
		validateStatus(verr, st)
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Task{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Title:          title,
		Status:         st,
		AllocatedHours: allocatedHours,
		TimeSpent:      0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// --- Métodos de dominio ---

// Apply valida todos los campos del patch y sólo entonces los aplica.
// Si algún campo es inválido la tarea no cambia.
func (t *Task) Apply(p TaskPatch) error {
	verr := sharedDomain.NewValidationError(ErrInvalidTask)

	var title string
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
		validateTitle(verr, title)
	}
	if p.Status != nil {
		validateStatus(verr, *p.Status)
	}
	if p.AllocatedHours != nil {
		validateHours(verr, "allocated_hours", *p.AllocatedHours)
	}
	if p.TimeSpent != nil {
		validateHours(verr, "time_spent", *p.TimeSpent)
	}

	if err := verr.OrNil(); err != nil {
		return err
	}

	if p.Title != nil {
		t.Title = title
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AllocatedHours != nil {
		t.AllocatedHours = *p.AllocatedHours
	}
	if p.TimeSpent != nil {
		t.TimeSpent = *p.TimeSpent
	}
	t.touch()
	return nil
}

// AddTime suma 'seconds' convertidos a horas y redondea a 4 decimales.
func (t *Task) AddTime(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		verr := sharedDomain.NewValidationError(ErrInvalidTask)
		verr.Add("seconds", "must be a non-negative number")
		return verr
	}

	total := RoundTo(t.TimeSpent+seconds/3600, 4)
	if math.IsInf(total, 0) || total > MaxHours {
		verr := sharedDomain.NewValidationError(ErrInvalidTask)
		verr.Add("seconds", "time spent would exceed 1000000 hours")
		return verr
	}

	t.TimeSpent = total
	t.touch()
	return nil
}

// ChangeStatus cambia el estado; un valor fuera del conjunto deja la tarea intacta.
func (t *Task) ChangeStatus(status TaskStatus) error {
	if !status.IsValid() {
		verr := sharedDomain.NewValidationError(ErrInvalidTask)
		verr.Add("status", "invalid status")
		return verr
	}

	t.Status = status
	t.touch()
	return nil
}

// HoursRemaining = max(0, allocated - spent).
func (t *Task) HoursRemaining() float64 {
	return math.Max(0, t.AllocatedHours-t.TimeSpent)
}

// CompletionPercentage es el porcentaje consumido del presupuesto, acotado a 100.
func (t *Task) CompletionPercentage() float64 {
	if t.AllocatedHours == 0 {
		return 0
	}
	return math.Min(100, 100*t.TimeSpent/t.AllocatedHours)
}

func (t *Task) IsOwnedBy(ownerID uuid.UUID) bool {
	return t.OwnerID == ownerID
}

func (t *Task) touch() {
	t.UpdatedAt = time.Now().UTC()
}

// RoundTo redondea v a 'places' decimales. Si v*10^places desborda, v se devuelve tal cual.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	scaled := v * p
	if math.IsInf(scaled, 0) {
		return v
	}
	return math.Round(scaled) / p
}

// ---------------- Validaciones ----------------

func validateTitle(verr *sharedDomain.ValidationError, title string) {
	if title == "" {
		verr.Add("title", "this field may not be blank")
		return
	}
	if utf8.RuneCountInString(title) > TitleMaxLength {
		verr.Add("title", "ensure this field has no more than 200 characters")
	}
}

func validateHours(verr *sharedDomain.ValidationError, field string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		verr.Add(field, "must be a finite number")
		return
	}
	if v < 0 {
		verr.Add(field, "must be greater than or equal to 0")
		return
	}
	if v > MaxHours {
		verr.Add(field, "ensure this value is less than or equal to 1000000")
	}
}

func validateStatus(verr *sharedDomain.ValidationError, s TaskStatus) {
	if !s.IsValid() {
		verr.Add("status", "invalid status")
	}
}
