package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/fsdp"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/fsdp/types/topology"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RankReport is the sharding plan of every parameter for one rank.
type RankReport struct {
	Rank         int
	Coordinates  []int
	MeshInfo     *fsdp.MeshInfo
	Plans        []fsdp.ShardPlan
	ShardBytes   uintptr
	PaddingBytes uintptr
}

// BuildRankReport computes the plans of all parameters in params for the given rank.
func BuildRankReport(cfg *Config, dm *topology.DeviceMesh, params []shapes.Shape, rank int) (*RankReport, error) {
	info, err := cfg.MeshInfoForRank(dm, rank)
	if err != nil {
		return nil, errors.WithMessagef(err, "rank %d", rank)
	}
	_, coords, err := dm.DeviceToMesh(rank)
	if err != nil {
		return nil, err
	}
	report := &RankReport{Rank: rank, Coordinates: coords, MeshInfo: info}
	for i, shape := range params {
		plan, err := fsdp.ShardPlanFor(info, shape)
		if err != nil {
			return nil, errors.WithMessagef(err, "param %q", cfg.Params[i].Name)
		}
		klog.V(2).Infof("rank %d, param %q: %s", rank, cfg.Params[i].Name, plan)
		report.Plans = append(report.Plans, plan)
		report.ShardBytes += plan.ShardBytes()
		report.PaddingBytes += plan.PaddingBytes()
	}
	return report, nil
}

// Write the report in a human-readable format.
func (r *RankReport) Write(w io.Writer, params []ParamConfig) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rank %d %v: %s\n", r.Rank, r.Coordinates, r.MeshInfo)
	for i, plan := range r.Plans {
		name := params[i].Name
		if len(params[i].SharedWith) > 0 {
			name = fmt.Sprintf("%s (shared with %s)", name, strings.Join(params[i].SharedWith, ", "))
		}
		fmt.Fprintf(&sb, "  %s: %s\n", name, plan)
	}
	fmt.Fprintf(&sb, "  Total: %s per rank (%s padding)\n",
		humanize.Bytes(uint64(r.ShardBytes)), humanize.Bytes(uint64(r.PaddingBytes)))
	_, err := io.WriteString(w, sb.String())
	return err
}
