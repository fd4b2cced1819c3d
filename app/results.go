package app

type Results struct {
	Findings []Finding
	Summary  Summary
}

type Finding struct {
	Case  string `json:"case"`
	URL   string `json:"url"`
	Error string `json:"error"`
	Diff  string `json:"diff"`
}

type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func (r *Results) Failed() bool {
	return len(r.Findings) > 0
}
