package domain

import (
	"github.com/google/uuid"

	shared "github.com/davicafu/pomotasks/internal/shared/domain"
)

// --- Criterios Específicos para el Dominio Task ---

// OwnerCriteria limita la consulta a las tareas de un propietario.
type OwnerCriteria struct {
	OwnerID uuid.UUID
}

// ToConditions implementa la interfaz shared.Criteria.
func (c OwnerCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: "owner_id", Op: shared.OpEq, Value: c.OwnerID.String()},
	}
}

// -----------------------------------------------------------

// TitleContainsCriteria busca tareas cuyo título contenga el texto, sin distinguir mayúsculas.
// Un texto vacío no filtra nada.
type TitleContainsCriteria struct {
	Query string
}

// ToConditions implementa la interfaz shared.Criteria.
func (c TitleContainsCriteria) ToConditions() []shared.Criterion {
	if c.Query == "" {
		return nil
	}
	return []shared.Criterion{
		{Field: "title", Op: shared.OpIContains, Value: c.Query},
	}
}
