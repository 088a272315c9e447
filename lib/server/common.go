package server

type GridParams struct {
	Sort   string `form:"sort"`
	Asc    *bool  `form:"asc"`
	Offset *int   `form:"offset"`
	Limit  *int   `form:"limit"`
}

type ListParams struct {
	GridParams
}

type DependenciesParams struct {
	Uncommitted bool `form:"uncommitted"`
}

type MoveParams struct {
	Commit string `uri:"commit" json:"-"`
	Lane   string `json:"lane"`
}

type RenameParams struct {
	Branch string `uri:"branch" json:"-"`
	Name   string `json:"name"`
}
