package domain

// Benefit is one discount entry of the public catalog.
type Benefit struct {
	ID          int64    `json:"id"`
	Nombre      string   `json:"nombre"`
	Categoria   string   `json:"categoria"`
	Municipio   string   `json:"municipio"`
	Descuento   string   `json:"descuento"`
	Direccion   string   `json:"direccion"`
	Horario     string   `json:"horario"`
	Descripcion string   `json:"descripcion"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

type Municipio struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// CatalogFilter carries the optional query filters plus clamped
// pagination values.
type CatalogFilter struct {
	Query     string
	Categoria string
	Municipio string
	Page      int
	PageSize  int
}

type CatalogPage struct {
	Items      []Benefit `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}
