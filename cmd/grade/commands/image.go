package commands

import (
	"fmt"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"KneeGrader/pkg/jointspace"
)

type result struct {
	File                  string            `json:"file"`
	Classification        jointspace.Grade  `json:"classification,omitempty"`
	JointSpaceWidths      jointspace.Widths `json:"joint_space_widths"`
	InsufficientStructure bool              `json:"insufficient_structure"`
	Error                 string            `json:"error,omitempty"`
}

func imageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>...",
		Short: "Print the joint-space widths and grade of each image as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]result, 0, len(args))
			failed := 0
			for _, path := range args {
				r := gradeFile(path)
				if r.Error != "" {
					failed++
				}
				results = append(results, r)
			}

			var (
				out []byte
				err error
			)
			if pretty {
				out, err = jsoniter.MarshalIndent(results, "", "  ")
			} else {
				out, err = jsoniter.Marshal(results)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if failed > 0 {
				return fmt.Errorf("%d of %d images could not be processed", failed, len(args))
			}
			return nil
		},
	}
	return cmd
}

func gradeFile(path string) result {
	r := result{File: filepath.Base(path)}

	shapes, err := analyzer.AnalyzeFile(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}

	widths := jointspace.Measure(shapes)
	r.JointSpaceWidths = widths
	r.InsufficientStructure = widths.Insufficient()
	r.Classification = jointspace.Classify(widths)
	return r
}
