// fsdp_plan prints how each parameter of a model is sharded on each rank of a device mesh.
//
// The mesh, the data-parallel axes and the parameters are read from a YAML file, see Config.
//
// Usage:
//
//	go run ./cmd/fsdp_plan --config=model.yaml --rank=3
//	go run ./cmd/fsdp_plan --config=model.yaml --all_ranks
package main

import (
	"flag"
	"io"
	"os"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagConfig   = flag.String("config", "", "YAML file with the mesh and parameters configuration.")
	flagRank     = flag.Int("rank", 0, "Rank to print the plan for.")
	flagAllRanks = flag.Bool("all_ranks", false, "Print the plan for every rank of the mesh.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagConfig == "" {
		klog.Fatalf("Flag --config is required")
	}
	if err := run(os.Stdout, *flagConfig, *flagRank, *flagAllRanks); err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

// run loads the configuration and writes the report of the selected ranks to w.
func run(w io.Writer, configPath string, rank int, allRanks bool) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	dm, err := cfg.BuildMesh()
	if err != nil {
		return err
	}
	params, err := cfg.ParamShapes()
	if err != nil {
		return err
	}
	klog.V(1).Infof("Loaded %s with %d parameters", dm, len(params))

	ranks := []int{rank}
	if allRanks {
		ranks = dm.Devices()
		slices.Sort(ranks)
	}
	for _, r := range ranks {
		report, err := BuildRankReport(cfg, dm, params, r)
		if err != nil {
			return err
		}
		if err = report.Write(w, cfg.Params); err != nil {
			return errors.Wrap(err, "writing report")
		}
	}
	return nil
}
