package wizard

type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in-progress"
	StatusComplete   StepStatus = "complete"
)

type Step struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
}

type Progress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

var stepDefinitions = [StepCount]struct {
	title       string
	description string
}{
	{"Property & Ownership Type", "Select your property and ownership type"},
	{"Ownership Documents", "Upload Dolil/Agreements (Core ownership papers)"},
	{"Verification Documents", "DCR, Khatian records, and Khajna receipts"},
	{"Possession & History", "Possession confirmation and previous owner records"},
	{"Maps & Visuals", "Upload Mouja Map and property visuals"},
	{"Property Details", "Size, valuation, address, and seller information"},
}

// Steps derives the status of all six steps. Steps 1 and 2 are complete
// when their content is present; the others are complete once passed.
func (w *Wizard) Steps() []Step {
	steps := make([]Step, 0, StepCount)
	for i, def := range stepDefinitions {
		id := i + FirstStep
		steps = append(steps, Step{
			ID:          id,
			Title:       def.title,
			Description: def.description,
			Status:      w.status(id),
		})
	}
	return steps
}

func (w *Wizard) Progress() Progress {
	completed := 0
	for id := FirstStep; id <= LastStep; id++ {
		if w.status(id) == StatusComplete {
			completed++
		}
	}
	return Progress{
		Completed: completed,
		Total:     StepCount,
		Percent:   float64(completed) / float64(StepCount) * 100,
	}
}

func (w *Wizard) status(id int) StepStatus {
	switch id {
	case 1:
		if w.state.PropertyType != "" && w.state.OwnershipType != "" {
			return StatusComplete
		}
		return w.positional(id, false)
	case 2:
		if len(w.state.Documents.DolilAgreements.Files) > 0 {
			return StatusComplete
		}
		return w.positional(id, false)
	default:
		return w.positional(id, true)
	}
}

func (w *Wizard) positional(id int, passedIsComplete bool) StepStatus {
	switch {
	case id == w.current:
		return StatusInProgress
	case id < w.current && passedIsComplete:
		return StatusComplete
	default:
		return StatusPending
	}
}
