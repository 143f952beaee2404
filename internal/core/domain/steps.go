package domain

type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusCurrent   StepStatus = "current"
	StepStatusUpcoming  StepStatus = "upcoming"
)

var (
	newApplicantSteps      = []ApplicationStep{StepPersonalInfo, StepAcademicDetails, StepProgramSelection, StepReview, StepPayment}
	existingApplicantSteps = []ApplicationStep{StepLogin, StepPayment}
)

var stepLabels = map[UserType]map[ApplicationStep]string{
	UserTypeNew: {
		StepPersonalInfo:     "Personal Info",
		StepAcademicDetails:  "Academic Details",
		StepProgramSelection: "Program Selection",
		StepReview:           "Review Details",
		StepPayment:          "Payment",
	},
	UserTypeExisting: {
		StepLogin:   "Login",
		StepPayment: "Make Payment",
	},
}

// StepsFor returns the wizard sequence for a user type. An unset user type has none.
func StepsFor(userType UserType) []ApplicationStep {
	switch userType {
	case UserTypeNew:
		return append([]ApplicationStep(nil), newApplicantSteps...)
	case UserTypeExisting:
		return append([]ApplicationStep(nil), existingApplicantSteps...)
	default:
		return nil
	}
}

func indexOf(steps []ApplicationStep, step ApplicationStep) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}

// StepStatusOf derives the status of step relative to current. When current is
// outside the sequence (success, login for new applicants) every step is upcoming.
func StepStatusOf(steps []ApplicationStep, step, current ApplicationStep) StepStatus {
	stepIndex := indexOf(steps, step)
	currentIndex := indexOf(steps, current)
	switch {
	case stepIndex < currentIndex:
		return StepStatusCompleted
	case stepIndex == currentIndex:
		return StepStatusCurrent
	default:
		return StepStatusUpcoming
	}
}

func CanNavigate(status StepStatus) bool {
	return status == StepStatusCompleted || status == StepStatusCurrent
}

// NextStep returns the step following step in the sequence of userType.
func NextStep(userType UserType, step ApplicationStep) (ApplicationStep, bool) {
	steps := StepsFor(userType)
	i := indexOf(steps, step)
	if i < 0 || i+1 >= len(steps) {
		return "", false
	}
	return steps[i+1], true
}

type StepView struct {
	Step      ApplicationStep `json:"step"`
	Label     string          `json:"label"`
	Status    StepStatus      `json:"status"`
	Clickable bool            `json:"clickable"`
}

func Wizard(userType UserType, current ApplicationStep) []StepView {
	steps := StepsFor(userType)
	out := make([]StepView, 0, len(steps))
	for _, step := range steps {
		status := StepStatusOf(steps, step, current)
		out = append(out, StepView{
			Step:      step,
			Label:     stepLabels[userType][step],
			Status:    status,
			Clickable: CanNavigate(status),
		})
	}
	return out
}
