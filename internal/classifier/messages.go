package classifier

import "fmt"

// Wire messages for the classification sidecar, written in the legacy
// protobuf shape (struct tags, no generated descriptor). The proto runtime
// derives the descriptor from the tags when marshaling.

// #region request

// ClassifyRequest asks the sidecar to score a document.
type ClassifyRequest struct {
	Text     string   `protobuf:"bytes,1,opt,name=text,proto3" json:"text,omitempty"`
	Entities []string `protobuf:"bytes,2,rep,name=entities,proto3" json:"entities,omitempty"`
}

func (m *ClassifyRequest) Reset()         { *m = ClassifyRequest{} }
func (m *ClassifyRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ClassifyRequest) ProtoMessage()    {}

// #endregion request

// #region response

// ClassifyResponse carries the sidecar's anomaly signal.
type ClassifyResponse struct {
	AnomalyScore float32 `protobuf:"fixed32,1,opt,name=anomaly_score,json=anomalyScore,proto3" json:"anomaly_score,omitempty"`
	Label        string  `protobuf:"bytes,2,opt,name=label,proto3" json:"label,omitempty"`
}

func (m *ClassifyResponse) Reset()         { *m = ClassifyResponse{} }
func (m *ClassifyResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ClassifyResponse) ProtoMessage()    {}

// #endregion response
