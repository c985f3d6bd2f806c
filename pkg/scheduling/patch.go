package scheduling

import (
	"time"

	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/calendar"
)

// Patch holds the fields of a meeting to change. Unset fields are left alone;
// an explicitly set empty subject is applied as is.
type Patch struct {
	Subject   utils.Optional[string]
	Start     utils.Optional[time.Time]
	End       utils.Optional[time.Time]
	Attendees utils.Optional[[]calendar.Attendee]
}

func (p Patch) IsEmpty() bool {
	return !p.Subject.Set && !p.Start.Set && !p.End.Set && !p.Attendees.Set
}

func (p Patch) changesWindow() bool {
	return p.Start.Set || p.End.Set
}

// ChangedFields names the fields present in the patch.
func (p Patch) ChangedFields() []string {
	var fields []string
	if p.Subject.Set {
		fields = append(fields, "subject")
	}
	if p.Start.Set {
		fields = append(fields, "start")
	}
	if p.End.Set {
		fields = append(fields, "end")
	}
	if p.Attendees.Set {
		fields = append(fields, "attendees")
	}
	return fields
}
