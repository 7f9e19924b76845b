package stdbind

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/chazu/tether/bridge"
)

var grpcLog = commonlog.GetLogger("tether.stdbind.grpc")

const defaultCallTimeout = 30 * time.Second

// ---------------------------------------------------------------------------
// std.grpc.Channel
// ---------------------------------------------------------------------------

// Channel is a dynamically typed gRPC client. Services and methods resolve
// through the server reflection API, so no generated stubs are involved;
// request and response payloads travel as protobuf JSON text.
type Channel struct {
	target string
	conn   *grpc.ClientConn
	ref    *grpcreflect.Client
	closed atomic.Bool

	mu      sync.Mutex
	timeout time.Duration
}

// DialChannel connects to target without transport security and opens a
// reflection client over the connection. The connection is lazy; a dead
// target surfaces on the first call, not here.
func DialChannel(target string) (*Channel, error) {
	conn, err := grpc.Dial(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	grpcLog.Debugf("dialed %s", target)
	return &Channel{
		target:  target,
		conn:    conn,
		ref:     grpcreflect.NewClientAuto(context.Background(), conn),
		timeout: defaultCallTimeout,
	}, nil
}

// Target returns the dial target.
func (c *Channel) Target() string { return c.target }

// IsConnected reports whether the channel is still open.
func (c *Channel) IsConnected() bool { return !c.closed.Load() }

// CallTimeout returns the per-call deadline in seconds.
func (c *Channel) CallTimeout() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout.Seconds()
}

// SetCallTimeout sets the per-call deadline in seconds. Non-positive
// values are rejected.
func (c *Channel) SetCallTimeout(secs float64) error {
	if secs <= 0 {
		return fmt.Errorf("call timeout must be positive, got %v", secs)
	}
	c.mu.Lock()
	c.timeout = time.Duration(secs * float64(time.Second))
	c.mu.Unlock()
	return nil
}

// Services lists the service names the server advertises over reflection,
// sorted, with the reflection service itself filtered out.
func (c *Channel) Services() ([]string, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("channel is closed")
	}
	services, err := c.ref.ListServices()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	out := make([]string, 0, len(services))
	for _, svc := range services {
		if strings.HasPrefix(svc, "grpc.reflection") {
			continue
		}
		out = append(out, svc)
	}
	sort.Strings(out)
	return out, nil
}

// Methods lists the method names of one service.
func (c *Channel) Methods(service string) ([]string, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("channel is closed")
	}
	svcDesc, err := c.ref.ResolveService(service)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", service, err)
	}
	methods := svcDesc.GetMethods()
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = m.GetName()
	}
	return out, nil
}

// Describe returns metadata for a method named "package.Service/Method":
// the input and output message types and the streaming shape.
func (c *Channel) Describe(method string) (map[string]any, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("channel is closed")
	}
	md, err := c.resolveMethod(method)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":              md.GetName(),
		"fullName":          md.GetFullyQualifiedName(),
		"inputType":         md.GetInputType().GetFullyQualifiedName(),
		"outputType":        md.GetOutputType().GetFullyQualifiedName(),
		"isClientStreaming": md.IsClientStreaming(),
		"isServerStreaming": md.IsServerStreaming(),
	}, nil
}

// Invoke makes a unary call. method is "package.Service/Method" and
// requestJSON is the request message in protobuf JSON form; the response
// comes back the same way. Streaming methods are refused.
func (c *Channel) Invoke(method, requestJSON string) (string, error) {
	if c.closed.Load() {
		return "", fmt.Errorf("channel is closed")
	}
	md, err := c.resolveMethod(method)
	if err != nil {
		return "", err
	}
	if md.IsClientStreaming() || md.IsServerStreaming() {
		return "", fmt.Errorf("method %s is streaming; only unary methods can be invoked", method)
	}

	req := dynamicpb.NewMessage(md.UnwrapMethod().Input())
	if err := protojson.Unmarshal([]byte(requestJSON), req); err != nil {
		return "", fmt.Errorf("request conversion failed: %w", err)
	}
	resp := dynamicpb.NewMessage(md.UnwrapMethod().Output())

	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.conn.Invoke(ctx, "/"+method, req, resp); err != nil {
		return "", fmt.Errorf("call failed: %w", err)
	}
	out, err := protojson.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("response conversion failed: %w", err)
	}
	return string(out), nil
}

// Close tears the channel down. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Swap(true) {
		return nil
	}
	c.ref.Reset()
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	grpcLog.Debugf("closed channel to %s", c.target)
	return nil
}

// resolveMethod resolves "package.Service/Method" to its descriptor.
func (c *Channel) resolveMethod(fullMethod string) (*desc.MethodDescriptor, error) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid method format: %s (expected 'service/method')", fullMethod)
	}
	serviceName, methodName := parts[0], parts[1]

	svcDesc, err := c.ref.ResolveService(serviceName)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", serviceName, err)
	}
	md := svcDesc.FindMethodByName(methodName)
	if md == nil {
		return nil, fmt.Errorf("method %s not found in service %s", methodName, serviceName)
	}
	return md, nil
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// RegisterGRPC installs std.grpc.Channel. Channels are not copyable;
// collection of an unclosed channel proxy closes the connection.
func RegisterGRPC(e *bridge.Engine) error {
	_, err := bridge.DefineClass[Channel]("std.grpc.Channel").
		Constructor(DialChannel).
		Property("target", (*Channel).Target, nil).
		Property("callTimeout", (*Channel).CallTimeout, (*Channel).SetCallTimeout).
		ConstMethod("isConnected", (*Channel).IsConnected).
		Method("services", (*Channel).Services).
		Method("methods", (*Channel).Methods).
		Method("describe", (*Channel).Describe).
		Method("invoke", (*Channel).Invoke).
		Method("close", (*Channel).Close).
		Finalize(func(c *Channel) { _ = c.Close() }).
		NoCopy().
		Build(e)
	return err
}
