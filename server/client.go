package server

import (
	"context"

	"connectrpc.com/connect"

	"github.com/chazu/tether/bridge"
)

// InspectionClient is the typed client side of the inspection protocol,
// speaking the same CBOR codec as the server.
type InspectionClient struct {
	listClasses   *connect.Client[ListClassesRequest, ListClassesResponse]
	describeClass *connect.Client[DescribeClassRequest, DescribeClassResponse]
	listEnums     *connect.Client[ListEnumsRequest, ListEnumsResponse]
	digest        *connect.Client[DigestRequest, DigestResponse]
}

// NewInspectionClient creates a client for the inspection service at
// baseURL, e.g. "http://localhost:4568".
func NewInspectionClient(httpClient connect.HTTPClient, baseURL string) *InspectionClient {
	codec := connect.WithCodec(cborCodec{})
	return &InspectionClient{
		listClasses:   connect.NewClient[ListClassesRequest, ListClassesResponse](httpClient, baseURL+ListClassesProcedure, codec),
		describeClass: connect.NewClient[DescribeClassRequest, DescribeClassResponse](httpClient, baseURL+DescribeClassProcedure, codec),
		listEnums:     connect.NewClient[ListEnumsRequest, ListEnumsResponse](httpClient, baseURL+ListEnumsProcedure, codec),
		digest:        connect.NewClient[DigestRequest, DigestResponse](httpClient, baseURL+DigestProcedure, codec),
	}
}

// ListClasses lists registered classes, optionally filtered by prefix.
func (c *InspectionClient) ListClasses(ctx context.Context, prefix string) ([]ClassSummary, error) {
	resp, err := c.listClasses.CallUnary(ctx, connect.NewRequest(&ListClassesRequest{Prefix: prefix}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Classes, nil
}

// DescribeClass fetches the wire view and digest of one class.
func (c *InspectionClient) DescribeClass(ctx context.Context, name string) (*DescribeClassResponse, error) {
	resp, err := c.describeClass.CallUnary(ctx, connect.NewRequest(&DescribeClassRequest{Name: name}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ListEnums fetches the wire view of every registered enum.
func (c *InspectionClient) ListEnums(ctx context.Context) ([]bridge.EnumDescriptor, error) {
	resp, err := c.listEnums.CallUnary(ctx, connect.NewRequest(&ListEnumsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Enums, nil
}

// Digest fetches the engine identity and registry digest.
func (c *InspectionClient) Digest(ctx context.Context) (*DigestResponse, error) {
	resp, err := c.digest.CallUnary(ctx, connect.NewRequest(&DigestRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
