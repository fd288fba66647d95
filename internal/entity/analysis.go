package entity

import "time"

type Analysis struct {
	ID                    string    `db:"id"`
	RequestID             string    `db:"request_id"`
	FileKey               string    `db:"file_key"`
	OriginalName          string    `db:"original_name"`
	SHA256                string    `db:"sha256"`
	WidthA                int       `db:"width_a"`
	WidthB                int       `db:"width_b"`
	Classification        string    `db:"classification"`
	InsufficientStructure bool      `db:"insufficient_structure"`
	CreatedAt             time.Time `db:"created_at"`
}
