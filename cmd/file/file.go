// Package file implements one-shot analysis of audio clips from the
// command line.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/echoguard/echoguard-go/internal/alert"
	"github.com/echoguard/echoguard-go/internal/classifier"
	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/hydroaudio"
	"github.com/echoguard/echoguard-go/internal/pipeline"
)

// Command creates the file command for analyzing audio clips.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "file [clip.wav ...]",
		Short: "Analyze one or more audio clips",
		Long:  `Analyze audio clips for underwater acoustic events and store the detections.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileAnalysis(settings, args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func runFileAnalysis(settings *conf.Settings, paths []string, asJSON bool) error {
	store := datastore.New(settings)
	if store == nil {
		return errors.Newf("no database output enabled").
			Component("file").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	cls, err := classifier.New(&settings.Model, classifier.DefaultThreatPolicy())
	if err != nil {
		return err
	}

	dispatcher := alert.NewDispatcher(&settings.Alerts, store, nil)
	processor := pipeline.New(settings, cls, store, dispatcher, nil, nil)

	reqs := make([]pipeline.AnalyzeRequest, 0, len(paths))
	for _, path := range paths {
		reqs = append(reqs, pipeline.AnalyzeRequest{Source: hydroaudio.FileSource(path)})
	}

	batch := processor.AnalyzeBatch(context.Background(), reqs)

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(batch); err != nil {
			return err
		}
	} else {
		for i := range batch.Results {
			d := &batch.Results[i].Detection
			flag := ""
			if d.IsThreat {
				flag = " [THREAT]"
			}
			fmt.Printf("%s: %s (%.1f%%)%s\n", d.AudioFilePath, d.EventType, d.Confidence*100, flag)
		}
		for _, failure := range batch.Errors {
			fmt.Fprintf(os.Stderr, "%s: %s\n", failure.Name, failure.Error)
		}
	}

	if len(batch.Errors) > 0 {
		return errors.Newf("%d of %d clips failed", len(batch.Errors), len(paths)).
			Component("file").
			Category(errors.CategoryGeneric).
			Build()
	}
	return nil
}
