package query

// Sort indica campo y dirección.
type Sort struct {
	Field string // ej. "created_at", "title"
	Desc  bool
}

// NewestFirst es el orden por defecto de los listados.
var NewestFirst = Sort{Field: "created_at", Desc: true}
