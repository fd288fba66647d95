package jointspace

type Grade string

const (
	GradeSevere   Grade = "Grade 3 or 4 (Severe Osteoarthritis)"
	GradeModerate Grade = "Grade 2 (Moderate Osteoarthritis)"
	GradeMild     Grade = "Grade 1 (Mild Osteoarthritis)"
	GradeNormal   Grade = "Grade 0 (Normal Joint Space)"
	GradeInvalid  Grade = "Invalid (Out of Expected Range)"
)

var thresholds = []struct {
	below int
	grade Grade
}{
	{5, GradeSevere},
	{7, GradeModerate},
	{8, GradeMild},
	{10, GradeNormal},
}

// Classify returns the first grade whose threshold either width falls
// below. One narrow width is enough to drive the grade, and the [0, 0]
// sentinel lands on GradeSevere.
func Classify(w Widths) Grade {
	for _, t := range thresholds {
		if w[0] < t.below || w[1] < t.below {
			return t.grade
		}
	}
	return GradeInvalid
}
