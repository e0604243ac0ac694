package domain

// Match is one ranked hit returned by a storage query.
type Match struct {
	ChunkID    string         `json:"chunk_id"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Provenance string         `json:"provenance,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// QueryResult is what a storage backend returns for a similarity query.
type QueryResult struct {
	Matches  []Match
	Searched int
}

// EvalResult is the engine's output for a single ingest or query call.
type EvalResult struct {
	Matches       []Match `json:"matches"`
	CountIngested int     `json:"count_ingested,omitempty"`
	CountSearched int     `json:"count_searched,omitempty"`
	ElapsedMs     int64   `json:"elapsed_ms"`
	Provenance    string  `json:"provenance,omitempty"`
	Stage         Stage   `json:"stage"`
}
