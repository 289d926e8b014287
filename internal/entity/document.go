package entity

// DocumentRepresentation is the format-neutral view of an acquired document.
type DocumentRepresentation struct {
	Pages     []Page `json:"pages"`
	PageCount int    `json:"pageCount"`
}

type Page struct {
	Number int      `json:"number"`
	Lines  []string `json:"lines"`
	Tables []Table  `json:"tables,omitempty"`
}

// Table is a 2-D grid of cell text.
type Table struct {
	Rows [][]string `json:"rows"`
}

// Provenance points back to the text a value came from. Text is never empty.
type Provenance struct {
	Text   string `json:"text"`
	Page   int    `json:"page,omitempty"`
	Method string `json:"method,omitempty"`
}
