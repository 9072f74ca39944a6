package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/codeshell/internal/shared/types"
)

// Registry manages service discovery and execution
type Registry struct {
	mu       sync.RWMutex
	services map[string]Provider
}

// Provider interface for service implementations
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error)
}

// NewRegistry creates a new service registry
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Provider)}
}

// Register adds a service provider
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[def.ID]; exists {
		return fmt.Errorf("service already registered: %s", def.ID)
	}
	r.services[def.ID] = provider
	return nil
}

// Unregister removes a service provider
func (r *Registry) Unregister(serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, serviceID)
}

// Get retrieves a service by ID
func (r *Registry) Get(serviceID string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.services[serviceID]
	return p, ok
}

// List returns all registered services sorted by ID
func (r *Registry) List(category *types.Category) []types.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]types.Service, 0, len(r.services))
	for _, provider := range r.services {
		def := provider.Definition()
		if category == nil || def.Category == *category {
			services = append(services, def)
		}
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].ID < services[j].ID
	})
	return services
}

// Discover finds relevant services for a given intent
func (r *Registry) Discover(intent string, limit int) []types.Service {
	type scoredService struct {
		service types.Service
		score   float64
	}

	intentLower := strings.ToLower(intent)
	var results []scoredService

	for _, def := range r.List(nil) {
		if score := relevance(intentLower, def); score > 0 {
			results = append(results, scoredService{service: def, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	output := make([]types.Service, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		output = append(output, results[i].service)
	}
	return output
}

// Execute routes a tool call ("service.tool") to its provider
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	serviceID, _, ok := strings.Cut(toolID, ".")
	if !ok || serviceID == "" {
		return types.Failure("invalid tool ID format"), fmt.Errorf("invalid tool ID format: %s", toolID)
	}

	provider, ok := r.Get(serviceID)
	if !ok {
		return types.Failure(fmt.Sprintf("service not found: %s", serviceID)), fmt.Errorf("service not found: %s", serviceID)
	}

	return provider.Execute(ctx, toolID, params, appCtx)
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	var total, totalTools int
	categories := make(map[string]int)

	for _, def := range r.List(nil) {
		total++
		totalTools += len(def.Tools)
		categories[string(def.Category)]++
	}

	return map[string]interface{}{
		"total_services": total,
		"total_tools":    totalTools,
		"categories":     categories,
	}
}

func relevance(intent string, service types.Service) float64 {
	score := 0.0

	if strings.Contains(intent, service.ID) || strings.Contains(intent, strings.ToLower(service.Name)) {
		score += 10.0
	}

	for _, word := range strings.Fields(strings.ToLower(service.Description)) {
		if len(word) > 3 && strings.Contains(intent, word) {
			score += 5.0
		}
	}

	for _, capability := range service.Capabilities {
		if strings.Contains(intent, strings.ReplaceAll(strings.ToLower(capability), "_", " ")) {
			score += 3.0
		}
	}

	if strings.Contains(intent, string(service.Category)) {
		score += 2.0
	}

	return score
}
