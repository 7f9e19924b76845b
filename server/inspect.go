package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/tether/bridge"
)

// errClassNotFound marks lookup failures so they surface as CodeNotFound
// rather than CodeInternal.
var errClassNotFound = errors.New("class not found")

// Procedure paths of the inspection protocol. There is no generated
// schema; paths and message shapes are the contract.
const (
	ListClassesProcedure   = "/tether.v1.InspectionService/ListClasses"
	DescribeClassProcedure = "/tether.v1.InspectionService/DescribeClass"
	ListEnumsProcedure     = "/tether.v1.InspectionService/ListEnums"
	DigestProcedure        = "/tether.v1.InspectionService/Digest"
)

// ---------------------------------------------------------------------------
// Message types
// ---------------------------------------------------------------------------

// ListClassesRequest selects classes to list. An empty prefix lists all.
type ListClassesRequest struct {
	Prefix string `cbor:"1,keyasint,omitempty"`
}

// ClassSummary is one row of a class listing.
type ClassSummary struct {
	Name          string `cbor:"1,keyasint"`
	ID            uint32 `cbor:"2,keyasint"`
	Base          string `cbor:"3,keyasint,omitempty"`
	Constructible bool   `cbor:"4,keyasint"`
}

// ListClassesResponse carries the matching classes in registration order.
type ListClassesResponse struct {
	Classes []ClassSummary `cbor:"1,keyasint"`
}

// DescribeClassRequest names the class to describe.
type DescribeClassRequest struct {
	Name string `cbor:"1,keyasint"`
}

// DescribeClassResponse carries the full wire view of one class and its
// content digest.
type DescribeClassResponse struct {
	Class  bridge.ClassDescriptor `cbor:"1,keyasint"`
	Digest string                 `cbor:"2,keyasint"`
}

// ListEnumsRequest has no parameters.
type ListEnumsRequest struct{}

// ListEnumsResponse carries every registered enum in registration order.
type ListEnumsResponse struct {
	Enums []bridge.EnumDescriptor `cbor:"1,keyasint"`
}

// DigestRequest has no parameters.
type DigestRequest struct{}

// DigestResponse identifies the engine and summarizes its registry: the
// content digest plus class and enum counts.
type DigestResponse struct {
	EngineID string `cbor:"1,keyasint"`
	Digest   string `cbor:"2,keyasint"`
	Classes  uint32 `cbor:"3,keyasint"`
	Enums    uint32 `cbor:"4,keyasint"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// InspectionService answers registry questions about one engine. All
// engine access goes through the worker.
type InspectionService struct {
	worker *EngineWorker
}

// NewInspectionService creates an InspectionService.
func NewInspectionService(worker *EngineWorker) *InspectionService {
	return &InspectionService{worker: worker}
}

// ListClasses returns a summary of every registered class, optionally
// filtered by name prefix.
func (s *InspectionService) ListClasses(
	ctx context.Context,
	req *connect.Request[ListClassesRequest],
) (*connect.Response[ListClassesResponse], error) {
	result, err := s.worker.Do(func(e *bridge.Engine) interface{} {
		classes := e.Classes()
		out := make([]ClassSummary, 0, len(classes))
		for _, cls := range classes {
			m := cls.Meta()
			if req.Msg.Prefix != "" && !strings.HasPrefix(m.Name(), req.Msg.Prefix) {
				continue
			}
			sum := ClassSummary{
				Name:          m.Name(),
				ID:            m.ID(),
				Constructible: m.Constructible(),
			}
			if b := m.Base(); b != nil {
				sum.Base = b.Name()
			}
			out = append(out, sum)
		}
		return &ListClassesResponse{Classes: out}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*ListClassesResponse)), nil
}

// DescribeClass returns the full wire view of a single class.
func (s *InspectionService) DescribeClass(
	ctx context.Context,
	req *connect.Request[DescribeClassRequest],
) (*connect.Response[DescribeClassResponse], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}

	result, err := s.worker.Do(func(e *bridge.Engine) interface{} {
		cls, ok := e.ClassByName(req.Msg.Name)
		if !ok {
			return fmt.Errorf("%w: %q", errClassNotFound, req.Msg.Name)
		}
		digest, err := bridge.DigestClass(cls.Meta())
		if err != nil {
			return fmt.Errorf("digesting class %q: %w", req.Msg.Name, err)
		}
		return &DescribeClassResponse{
			Class:  bridge.DescribeClass(cls.Meta()),
			Digest: digest.String(),
		}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if errVal, ok := result.(error); ok {
		if errors.Is(errVal, errClassNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, errVal)
		}
		return nil, connect.NewError(connect.CodeInternal, errVal)
	}
	return connect.NewResponse(result.(*DescribeClassResponse)), nil
}

// ListEnums returns the wire view of every registered enum.
func (s *InspectionService) ListEnums(
	ctx context.Context,
	req *connect.Request[ListEnumsRequest],
) (*connect.Response[ListEnumsResponse], error) {
	result, err := s.worker.Do(func(e *bridge.Engine) interface{} {
		enums := e.Enums()
		out := make([]bridge.EnumDescriptor, len(enums))
		for i, m := range enums {
			out[i] = bridge.DescribeEnum(m)
		}
		return &ListEnumsResponse{Enums: out}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*ListEnumsResponse)), nil
}

// Digest returns the engine id and the registry content digest.
func (s *InspectionService) Digest(
	ctx context.Context,
	req *connect.Request[DigestRequest],
) (*connect.Response[DigestResponse], error) {
	result, err := s.worker.Do(func(e *bridge.Engine) interface{} {
		digest, err := e.RegistryDigest()
		if err != nil {
			return err
		}
		return &DigestResponse{
			EngineID: e.ID(),
			Digest:   digest.String(),
			Classes:  uint32(len(e.Classes())),
			Enums:    uint32(len(e.Enums())),
		}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if errVal, ok := result.(error); ok {
		return nil, connect.NewError(connect.CodeInternal, errVal)
	}
	return connect.NewResponse(result.(*DigestResponse)), nil
}
