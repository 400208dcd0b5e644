package api

import (
	"context"
	"encoding/json"
	"fmt"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The front-desk tablet talks to this service. Messages are well-known
// protobuf types so no generated code is needed on either side.
const loyaltyServiceName = "salon.v1.Loyalty"

const (
	methodGetCard       = "/" + loyaltyServiceName + "/GetCard"
	methodRegisterVisit = "/" + loyaltyServiceName + "/RegisterVisit"
	methodNextSlot      = "/" + loyaltyServiceName + "/NextSlot"
)

type LoyaltyServer interface {
	// GetCard looks a client up by "phone" or "token".
	GetCard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RegisterVisit(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error)
	// NextSlot answers the first free HH:MM today for a duration in minutes.
	NextSlot(ctx context.Context, in *wrapperspb.Int32Value) (*wrapperspb.StringValue, error)
}

func RegisterLoyaltyServer(s grpc.ServiceRegistrar, srv LoyaltyServer) {
	s.RegisterService(&loyaltyServiceDesc, srv)
}

var loyaltyServiceDesc = grpc.ServiceDesc{
	ServiceName: loyaltyServiceName,
	HandlerType: (*LoyaltyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCard", Handler: getCardHandler},
		{MethodName: "RegisterVisit", Handler: registerVisitHandler},
		{MethodName: "NextSlot", Handler: nextSlotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salon/v1/loyalty.proto",
}

func getCardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoyaltyServer).GetCard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetCard}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoyaltyServer).GetCard(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func registerVisitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoyaltyServer).RegisterVisit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRegisterVisit}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoyaltyServer).RegisterVisit(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func nextSlotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoyaltyServer).NextSlot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodNextSlot}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoyaltyServer).NextSlot(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}

// LoyaltyClient is the caller side of salon.v1.Loyalty.
type LoyaltyClient struct {
	cc grpc.ClientConnInterface
}

func NewLoyaltyClient(cc grpc.ClientConnInterface) *LoyaltyClient {
	return &LoyaltyClient{cc: cc}
}

func (c *LoyaltyClient) GetCard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetCard, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LoyaltyClient) RegisterVisit(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRegisterVisit, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LoyaltyClient) NextSlot(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodNextSlot, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type loyaltyServer struct {
	loyalty  domain.LoyaltyService
	bookings domain.BookingService
	logger   *zerolog.Logger
}

func newLoyaltyServer(deps Deps, logger *zerolog.Logger) *loyaltyServer {
	return &loyaltyServer{loyalty: deps.Loyalty, bookings: deps.Bookings, logger: logger}
}

func (s *loyaltyServer) GetCard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	lookup := models.CardLookup{
		Phone: fields["phone"].GetStringValue(),
		Token: fields["token"].GetStringValue(),
	}
	card, err := s.loyalty.Card(ctx, lookup)
	if err != nil {
		return nil, grpcError(loggerFrom(ctx, s.logger), err)
	}
	return s.cardStruct(ctx, card)
}

func (s *loyaltyServer) RegisterVisit(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
	card, err := s.loyalty.RegisterVisit(ctx, in.GetValue())
	if err != nil {
		return nil, grpcError(loggerFrom(ctx, s.logger), err)
	}
	return s.cardStruct(ctx, card)
}

func (s *loyaltyServer) NextSlot(ctx context.Context, in *wrapperspb.Int32Value) (*wrapperspb.StringValue, error) {
	slot, err := s.bookings.NextAvailableSlot(ctx, int(in.GetValue()))
	if err != nil {
		return nil, grpcError(loggerFrom(ctx, s.logger), err)
	}
	return wrapperspb.String(slot), nil
}

// cardStruct carries the card with the same field names as the JSON API.
func (s *loyaltyServer) cardStruct(ctx context.Context, card *models.ClientCard) (*structpb.Struct, error) {
	out, err := toStruct(card)
	if err != nil {
		return nil, grpcError(loggerFrom(ctx, s.logger), err)
	}
	return out, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return structpb.NewStruct(m)
}
