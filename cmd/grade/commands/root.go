package commands

import (
	"github.com/spf13/cobra"

	"KneeGrader/pkg/jointspace"
)

// FileAnalyzer reduces an image on disk to the shapes of its contours.
type FileAnalyzer interface {
	AnalyzeFile(path string) ([]jointspace.Shape, error)
}

var (
	analyzer FileAnalyzer
	pretty   bool
)

func Execute(newAnalyzer func() FileAnalyzer) error {
	return newRootCmd(newAnalyzer).Execute()
}

func newRootCmd(newAnalyzer func() FileAnalyzer) *cobra.Command {
	root := &cobra.Command{
		Use:          "grade",
		Short:        "Grade knee X-ray images from disk",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			analyzer = newAnalyzer()
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "indent JSON output")

	root.AddCommand(imageCmd())
	return root
}
