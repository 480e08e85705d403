package bank

import (
	"context"
	"fmt"

	"match-ticketing/internal/services/bank/wave"
)

// Factory creates gateway instances by provider.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) CreateGateway(ctx context.Context, provider Provider, config interface{}) (Gateway, error) {
	switch provider {
	case ProviderWave:
		waveConfig, ok := config.(*wave.Config)
		if !ok {
			return nil, fmt.Errorf("bank: invalid wave config type, expected *wave.Config")
		}
		return NewWaveAdapter(ctx, waveConfig)

	case ProviderMock:
		return NewMockGateway(), nil

	case ProviderOrangeMoney, ProviderFreeMoney:
		return nil, fmt.Errorf("bank: provider %s not implemented yet", provider)

	default:
		return nil, fmt.Errorf("bank: unsupported provider: %s", provider)
	}
}

func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{ProviderWave, ProviderMock}
}

// Registry manages configured gateways and the primary one used for new
// purchases.
type Registry struct {
	gateways map[Provider]Gateway
	factory  *Factory
	primary  Provider
}

func NewRegistry(factory *Factory) *Registry {
	return &Registry{
		gateways: make(map[Provider]Gateway),
		factory:  factory,
	}
}

func (r *Registry) Register(ctx context.Context, provider Provider, config interface{}) error {
	gw, err := r.factory.CreateGateway(ctx, provider, config)
	if err != nil {
		return fmt.Errorf("bank: create %s gateway: %w", provider, err)
	}
	r.gateways[provider] = gw
	if r.primary == "" {
		r.primary = provider
	}
	return nil
}

func (r *Registry) Gateway(provider Provider) (Gateway, error) {
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("bank: provider %s not registered", provider)
	}
	return gw, nil
}

func (r *Registry) Primary() (Gateway, error) {
	if r.primary == "" {
		return nil, fmt.Errorf("bank: no primary gateway configured")
	}
	return r.Gateway(r.primary)
}

func (r *Registry) Close(ctx context.Context) {
	for provider, gw := range r.gateways {
		if err := gw.Close(ctx); err != nil {
			fmt.Printf("bank: error closing %s gateway: %v\n", provider, err)
		}
	}
}
