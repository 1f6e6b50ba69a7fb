package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/openfluke/digitscope/engine"
	"github.com/openfluke/digitscope/mnist"
	"github.com/openfluke/digitscope/weights"
)

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	modelPath := fs.String("model", "model_weights.json", "weights file (.json or .safetensors)")
	images := fs.String("images", "t10k-images-idx3-ubyte.gz", "IDX image file")
	labels := fs.String("labels", "t10k-labels-idx1-ubyte.gz", "IDX label file")
	center := fs.Bool("center", false, "centre each image before inference")
	workers := fs.Int("workers", runtime.NumCPU(), "concurrent predictions")
	limit := fs.Int("limit", 0, "evaluate only the first N images (0 = all)")
	fs.Parse(args)

	set, err := mnist.Open(*images, *labels)
	if err != nil {
		return err
	}
	n := set.Len()
	if *limit > 0 && *limit < n {
		n = *limit
	}
	if *workers < 1 {
		*workers = 1
	}

	e := engine.New(weights.NewStore(*modelPath), engine.DefaultConfig())
	report, err := evaluate(context.Background(), e, set, n, *workers, *center)
	if err != nil {
		return err
	}

	log.Printf("✅ %d/%d correct (%.2f%%) in %s", report.correct, report.total,
		100*float64(report.correct)/float64(report.total), report.elapsed)
	for digit, row := range report.perClass {
		if row.total == 0 {
			continue
		}
		log.Printf("   %d: %5d/%5d  %.2f%%", digit, row.correct, row.total, 100*float64(row.correct)/float64(row.total))
	}
	return nil
}

type classScore struct {
	correct, total int
}

type evalReport struct {
	correct, total int
	perClass       []classScore
	elapsed        time.Duration
}

// evaluate predicts the first n images of set using workers goroutines that share one
// model.
func evaluate(ctx context.Context, e *engine.Engine, set *mnist.Set, n, workers int, center bool) (*evalReport, error) {
	start := time.Now()
	predicted := make([]int, n)
	errs := make([]error, workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range jobs {
				if errs[w] != nil {
					continue
				}
				p, err := e.Predict(ctx, set.Grid(i), center)
				if err != nil {
					errs[w] = fmt.Errorf("image %d: %w", i, err)
					continue
				}
				predicted[i] = p.Predicted
			}
		}(w)
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	report := &evalReport{total: n, elapsed: time.Since(start)}
	for i := 0; i < n; i++ {
		label := int(set.Labels[i])
		for len(report.perClass) <= label {
			report.perClass = append(report.perClass, classScore{})
		}
		report.perClass[label].total++
		if predicted[i] == label {
			report.correct++
			report.perClass[label].correct++
		}
	}
	return report, nil
}
