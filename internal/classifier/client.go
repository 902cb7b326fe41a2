package classifier

// #region imports
import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/protoadapt"

	"github.com/ebrodeur/recoupement/internal/threat"
)

// #endregion imports

// #region service-contract

const classifyMethod = "/recoupement.v1.ClassifierService/Classify"

// Service is the classification RPC surface. Injected in tests without a
// real gRPC connection.
type Service interface {
	Classify(ctx context.Context, in *ClassifyRequest) (*ClassifyResponse, error)
}

// grpcService routes Classify over a client connection.
type grpcService struct {
	cc *grpc.ClientConn
}

func (s *grpcService) Classify(ctx context.Context, in *ClassifyRequest) (*ClassifyResponse, error) {
	out := new(ClassifyResponse)
	err := s.cc.Invoke(ctx, classifyMethod, protoadapt.MessageV2Of(in), protoadapt.MessageV2Of(out))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service-contract

// #region client

// Client wraps the gRPC connection to the classification sidecar and adapts
// it to the rescorer's Classifier contract.
type Client struct {
	conn    *grpc.ClientConn
	service Service
}

// NewClient connects to the classification sidecar.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, service: &grpcService{cc: conn}}, nil
}

// NewClientWithService creates a Client with an injected service
// implementation. Used for testing without a real gRPC connection.
func NewClientWithService(svc Service) *Client {
	return &Client{service: svc}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion client

// #region classify

// Classify sends the document to the sidecar and returns its anomaly signal.
func (c *Client) Classify(ctx context.Context, text string, entities []string) (threat.ClassifySignal, error) {
	resp, err := c.service.Classify(ctx, &ClassifyRequest{
		Text:     text,
		Entities: entities,
	})
	if err != nil {
		return threat.ClassifySignal{}, fmt.Errorf("classify rpc: %w", err)
	}
	return threat.ClassifySignal{
		AnomalyScore: float64(resp.AnomalyScore),
		Label:        resp.Label,
	}, nil
}

// #endregion classify
