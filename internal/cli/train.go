package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgsearch/internal/db"
)

var (
	flagTrainImages    string
	flagTrainList      string
	flagTrainBranching int
	flagTrainDepth     int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build and save a catalog from an image list",
	Long: `train reads <images>/imagelist.txt (a count followed by that many
descriptor file names), adds every file as i0000000, i0000001, ..., builds the
vocabulary tree and the hash table and saves all artifacts.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&flagTrainImages, "images", ".", "directory holding the image list and descriptor files")
	trainCmd.Flags().StringVar(&flagTrainList, "list", db.DefaultListFile, "image list file name inside --images")
	trainCmd.Flags().IntVarP(&flagTrainBranching, "branching", "k", 10, "vocabulary tree branching factor")
	trainCmd.Flags().IntVarP(&flagTrainDepth, "depth", "d", 5, "vocabulary tree depth")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	d, err := db.New(conf)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Train(cmd.Context(), db.TrainOptions{
		ImageDir:  flagTrainImages,
		ListFile:  flagTrainList,
		Branching: flagTrainBranching,
		Depth:     flagTrainDepth,
	}); err != nil {
		return err
	}

	stats := d.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Trained %d images into %d visual words (%s/%s)\n", stats.Records, stats.Leaves, stats.Path, stats.Name)
	return nil
}
