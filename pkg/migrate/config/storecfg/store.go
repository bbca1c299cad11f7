// package storecfg
//
// connection settings for every supported store kind
package storecfg

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
)

// Type : store backend kind
type Type string

const (
	TypeDynamoDB Type = "dynamodb"
	TypeMYSQL    Type = "mysql"
	TypeFile     Type = "file"
	TypeMemory   Type = "memory"
)

// Store : one side of a job, only the block matching Type is read
type Store struct {
	Type     Type      `json:"type" yaml:"type"`
	DynamoDB *DynamoDB `json:"dynamodb,omitempty" yaml:"dynamodb,omitempty"`
	MYSQL    *MYSQL    `json:"mysql,omitempty" yaml:"mysql,omitempty"`
	File     *File     `json:"file,omitempty" yaml:"file,omitempty"`
	// Memory : dry run target, tables are created on demand and dropped on exit
	Memory *Memory `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// DynamoDB : aws settings, empty values fall back to the sdk's own resolution
type DynamoDB struct {
	Region         string `json:"region" yaml:"region"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	Profile        string `json:"profile" yaml:"profile"`
	PageLimit      int64  `json:"page_limit" yaml:"page_limit"`
	ConsistentRead bool   `json:"consistent_read" yaml:"consistent_read"`
}

// File : directory tree of json lines tables
type File struct {
	Root     string `json:"root" yaml:"root"`
	PageSize int    `json:"page_size" yaml:"page_size"`
}

type Memory struct {
	KeyAttributes []string `json:"key_attributes" yaml:"key_attributes"`
}

// ApplyEnv : AWS_REGION and AWS_PROFILE fill in missing dynamodb settings
func (s *Store) ApplyEnv() {
	if s.Type != TypeDynamoDB {
		return
	}
	if s.DynamoDB == nil {
		s.DynamoDB = &DynamoDB{}
	}
	if s.DynamoDB.Region == "" {
		s.DynamoDB.Region = os.Getenv("AWS_REGION")
	}
	if s.DynamoDB.Profile == "" {
		s.DynamoDB.Profile = os.Getenv("AWS_PROFILE")
	}
}

// Validate : every problem found, joined
func (s *Store) Validate(side string) error {
	var errs *multierror.Error
	prefix := func(err error) error { return fmt.Errorf("%s.%w", side, err) }
	switch s.Type {
	case TypeDynamoDB:
		if s.DynamoDB == nil || s.DynamoDB.Region == "" {
			errs = multierror.Append(errs, prefix(fmt.Errorf("dynamodb.region is required")))
		}
	case TypeMYSQL:
		if s.MYSQL == nil {
			errs = multierror.Append(errs, prefix(fmt.Errorf("mysql block is required")))
			break
		}
		for _, e := range s.MYSQL.validate() {
			errs = multierror.Append(errs, prefix(e))
		}
	case TypeFile:
		if s.File == nil || s.File.Root == "" {
			errs = multierror.Append(errs, prefix(fmt.Errorf("file.root is required")))
		}
	case TypeMemory:
		if side == "source" {
			errs = multierror.Append(errs, prefix(fmt.Errorf("memory can only be a target (dry run)")))
		}
		if s.Memory == nil || len(s.Memory.KeyAttributes) == 0 {
			errs = multierror.Append(errs, prefix(fmt.Errorf("memory.key_attributes needs at least one attribute")))
		}
	default:
		errs = multierror.Append(errs, prefix(fmt.Errorf("type %q is not one of dynamodb, mysql, file, memory", s.Type)))
	}
	return errs.ErrorOrNil()
}
