package exchange

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// frame is the wire envelope for one Transfer RPC: a single rank's
// contribution to one round's one message class, destined for one peer.
// It is gob-encoded into a wrapperspb.BytesValue so the service can be
// registered without a dedicated .proto/codec pair.
type frame struct {
	Src     int32
	Round   int64
	Kind    uint8
	Payload []byte
}

func encodeFrame(f frame) (*wrapperspb.BytesValue, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return &wrapperspb.BytesValue{Value: buf.Bytes()}, nil
}

func decodeFrame(v *wrapperspb.BytesValue) (frame, error) {
	var f frame
	if err := gob.NewDecoder(bytes.NewReader(v.GetValue())).Decode(&f); err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// ExchangeServer is the service implementation every rank's gRPC server
// registers: deliver a frame sent by a peer into this rank's inbox.
type ExchangeServer interface {
	Transfer(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// ExchangeClient is the client stub used to push a frame to a peer.
type ExchangeClient interface {
	Transfer(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type exchangeClient struct {
	cc grpc.ClientConnInterface
}

// NewExchangeClient builds a client stub against the Exchange service, in
// the shape protoc-gen-go-grpc would generate.
func NewExchangeClient(cc grpc.ClientConnInterface) ExchangeClient {
	return &exchangeClient{cc: cc}
}

func (c *exchangeClient) Transfer(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/mpcmatching.Exchange/Transfer", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Exchange_Transfer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServer).Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/mpcmatching.Exchange/Transfer",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ExchangeServer).Transfer(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ExchangeServiceDesc is the grpc.ServiceDesc for the hand-rolled Exchange
// service, mirroring what protoc-gen-go-grpc emits for a one-RPC service.
var ExchangeServiceDesc = grpc.ServiceDesc{
	ServiceName: "mpcmatching.Exchange",
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Transfer",
			Handler:    _Exchange_Transfer_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mpcmatching/exchange.proto",
}

// RegisterExchangeServer registers srv against s the way generated code
// would call s.RegisterService.
func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ExchangeServiceDesc, srv)
}

// inboxKey identifies one (round, message kind, source rank) slot.
func inboxKey(round int64, kind uint8, src int32) string {
	return fmt.Sprintf("%d:%d:%d", round, kind, src)
}

// rankInbox bridges the asynchronous Transfer RPC handler to the blocking
// per-slot receive used by GRPCTransport.Exchange: a handler stores a
// payload and the matching receiver blocks on the same channel.
type rankInbox struct {
	mu  sync.Mutex
	chs map[string]chan []byte
}

func newRankInbox() *rankInbox {
	return &rankInbox{chs: make(map[string]chan []byte)}
}

func (b *rankInbox) channel(key string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.chs[key]
	if !ok {
		ch = make(chan []byte, 1)
		b.chs[key] = ch
	}
	return ch
}

func (b *rankInbox) deliver(key string, payload []byte) {
	b.channel(key) <- payload
}

func (b *rankInbox) receive(ctx context.Context, key string) ([]byte, error) {
	select {
	case payload := <-b.channel(key):
		b.mu.Lock()
		delete(b.chs, key)
		b.mu.Unlock()
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// exchangeServerImpl is the ExchangeServer implementation that stores
// every inbound frame into this rank's inbox and ACKs immediately.
type exchangeServerImpl struct {
	inbox *rankInbox
}

func (s *exchangeServerImpl) Transfer(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	f, err := decodeFrame(in)
	if err != nil {
		return nil, err
	}
	s.inbox.deliver(inboxKey(f.Round, f.Kind, f.Src), f.Payload)
	return &wrapperspb.BytesValue{}, nil
}
