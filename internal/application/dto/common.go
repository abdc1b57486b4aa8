package dto

// ErrorResponse cuerpo de error HTTP. Rows se llena en rechazos de lote (una entrada por fila).
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Rows    []RowErrorDTO `json:"rows,omitempty"`
}

// RowErrorDTO motivo de rechazo de una fila.
type RowErrorDTO struct {
	Row    string `json:"row"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}
