package main

import (
	"bytes"
	"io"
	"os"

	"github.com/gomlx/fsdp"
	"github.com/gomlx/fsdp/internal/utils"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/fsdp/types/topology"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the layout of the YAML file describing the mesh and the parameters to shard.
//
// Example:
//
//	mesh:
//	  name: pod
//	  axes:
//	    - {name: replicate, size: 2}
//	    - {name: shard, size: 4}
//	shard_axis: shard
//	replicate_axis: replicate
//	params:
//	  - {name: embed.table, dtype: bf16, dims: [32000, 1024], shared_with: [head.weight]}
//	  - {name: block0.norm, dtype: f32, dims: [1024]}
type Config struct {
	Mesh MeshConfig `yaml:"mesh"`

	// ShardAxis and ReplicateAxis are mesh axes names. At least one must be set.
	ShardAxis     string `yaml:"shard_axis"`
	ReplicateAxis string `yaml:"replicate_axis"`

	Params []ParamConfig `yaml:"params"`
}

// MeshConfig describes the DeviceMesh.
type MeshConfig struct {
	Name string       `yaml:"name"`
	Axes []AxisConfig `yaml:"axes"`

	// Devices is the optional logical device assignment: the rank at each position of the mesh.
	Devices []int `yaml:"devices"`
}

// AxisConfig is one axis of the mesh.
type AxisConfig struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

// ParamConfig is one parameter to shard.
type ParamConfig struct {
	Name       string   `yaml:"name"`
	DType      string   `yaml:"dtype"`
	Dims       []int    `yaml:"dims"`
	SharedWith []string `yaml:"shared_with"`
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses the YAML configuration. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if err == io.EOF {
			return nil, errors.New("config is empty")
		}
		return nil, errors.Wrap(err, "parsing config")
	}
	if cfg.Mesh.Name == "" {
		cfg.Mesh.Name = "mesh"
	}
	cfg.Mesh.Name = fsdp.NormalizeIdentifier(cfg.Mesh.Name)
	return &cfg, nil
}

// BuildMesh creates the DeviceMesh described by the configuration.
func (c *Config) BuildMesh() (*topology.DeviceMesh, error) {
	sizes := make([]int, len(c.Mesh.Axes))
	names := make([]string, len(c.Mesh.Axes))
	for i, axis := range c.Mesh.Axes {
		sizes[i], names[i] = axis.Size, axis.Name
	}
	dm, err := topology.NewDeviceMesh(c.Mesh.Name, sizes, names)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid mesh")
	}
	if len(c.Mesh.Devices) > 0 {
		if err = dm.SetLogicalDeviceAssignment(c.Mesh.Devices...); err != nil {
			return nil, errors.WithMessage(err, "invalid mesh devices")
		}
	}
	return dm, nil
}

// MeshInfoForRank returns the MeshInfo of the given rank.
func (c *Config) MeshInfoForRank(dm *topology.DeviceMesh, rank int) (*fsdp.MeshInfo, error) {
	rm, err := dm.ForRank(rank)
	if err != nil {
		return nil, err
	}
	shardAxis, err := axisIndex(dm, c.ShardAxis)
	if err != nil {
		return nil, errors.WithMessage(err, "shard_axis")
	}
	replicateAxis, err := axisIndex(dm, c.ReplicateAxis)
	if err != nil {
		return nil, errors.WithMessage(err, "replicate_axis")
	}
	return fsdp.NewMeshInfo(rm, shardAxis, replicateAxis)
}

func axisIndex(dm *topology.DeviceMesh, name string) (int, error) {
	if name == "" {
		return fsdp.NoAxis, nil
	}
	return dm.AxisIndex(name)
}

// ParamShapes returns the shape of each parameter, in the order they were given.
func (c *Config) ParamShapes() ([]shapes.Shape, error) {
	seen := utils.MakeSet[string](len(c.Params))
	result := make([]shapes.Shape, len(c.Params))
	for i, param := range c.Params {
		if param.Name == "" {
			return nil, errors.Errorf("params[%d] has no name", i)
		}
		if seen.Has(param.Name) {
			return nil, errors.Errorf("param %q is defined more than once", param.Name)
		}
		seen.Insert(param.Name)
		dtype, err := utils.ParseDType(param.DType)
		if err != nil {
			return nil, errors.WithMessagef(err, "param %q", param.Name)
		}
		for _, dim := range param.Dims {
			if dim < 0 {
				return nil, errors.Errorf("param %q has negative dimension in %v", param.Name, param.Dims)
			}
		}
		result[i] = shapes.Make(dtype, param.Dims...)
	}
	return result, nil
}
