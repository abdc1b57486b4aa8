package entity

// Location representa una bodega o sucursal del negocio donde se guarda inventario.
type Location struct {
	ID         string
	BusinessID string
	Name       string
}
