package request

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownWrapper is returned if no wrapper is registered under the name.
var ErrUnknownWrapper = errors.New("wrapper is not registered")

// ErrMissingBoot is returned if a registered constructor creates a value without the Boot method.
var ErrMissingBoot = errors.New("missing boot capability")

// Wrapper customizes a PendingRequest.
// Boot is invoked exactly once, synchronously, when the wrapper is attached.
// The wrapper may call any configuration method of the request.
type Wrapper interface {
	Boot(r *PendingRequest)
}

// BootFunc is a function used as a Wrapper.
type BootFunc func(r *PendingRequest)

func (fn BootFunc) Boot(r *PendingRequest) {
	fn(r)
}

// Constructor creates a new wrapper instance, the value must implement the Wrapper interface.
type Constructor func() any

// ConfigurationError is returned if a wrapper cannot be resolved.
// Use errors.Is with ErrUnknownWrapper or ErrMissingBoot to check the reason.
type ConfigurationError struct {
	Name string
	Type string
	err  error
}

func (e *ConfigurationError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf(`wrapper "%s" of type %s: %s`, e.Name, e.Type, e.err)
	}
	return fmt.Sprintf(`wrapper "%s": %s`, e.Name, e.err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.err
}

// Registry maps names to wrapper constructors.
// It is safe for concurrent use, so it can be shared by all requests.
type Registry struct {
	lock         *sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{lock: &sync.RWMutex{}, constructors: make(map[string]Constructor)}
}

// Register the wrapper constructor under the name, a previous registration is replaced.
func (r *Registry) Register(name string, fn Constructor) {
	if name == "" {
		panic(fmt.Errorf("wrapper name cannot be empty"))
	}
	if fn == nil {
		panic(fmt.Errorf(`wrapper "%s": constructor cannot be nil`, name))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.constructors[name] = fn
}

// Resolve creates a new instance of the wrapper registered under the name.
func (r *Registry) Resolve(name string) (Wrapper, error) {
	r.lock.RLock()
	fn, found := r.constructors[name]
	r.lock.RUnlock()
	if !found {
		return nil, &ConfigurationError{Name: name, err: ErrUnknownWrapper}
	}

	value := fn()
	wrapper, ok := value.(Wrapper)
	if !ok {
		return nil, &ConfigurationError{Name: name, Type: fmt.Sprintf("%T", value), err: ErrMissingBoot}
	}
	return wrapper, nil
}

// Names returns sorted names of all registered wrappers.
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
