package archive

import (
	"time"

	"github.com/zombor/mrz-scanner/internal/mrz"
)

// Scan is a recognized document kept in the archive
type Scan struct {
	ID        string      `json:"id"`
	Record    *mrz.Record `json:"record"`
	Attempts  int         `json:"attempts"`
	ImageFile string      `json:"image_file"` // processed frame the record was read from
	Source    string      `json:"source"`     // frame directory, upload filename, ...
	CreatedAt time.Time   `json:"created_at"`
}
