package di

import "testing"

type counter struct{ n int }

func TestContainer_FactoryIsSingleton(t *testing.T) {
	c := NewContainer()
	token := NewToken[*counter]("test.counter")

	builds := 0
	RegisterToken(c, token, func(ServiceRegistry) *counter {
		builds++
		return &counter{n: builds}
	})

	a := GetToken(c, token)
	b := GetToken(c, token)
	if a != b {
		t.Fatal("expected the same instance on every resolve")
	}
	if builds != 1 {
		t.Fatalf("factory ran %d times, want 1", builds)
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("config", 42)

	token := NewToken[int]("test.doubled")
	RegisterToken(c, token, func(sr ServiceRegistry) int {
		return sr.Get("config").(int) * 2
	})

	if got := GetToken(c, token); got != 84 {
		t.Fatalf("got %d, want 84", got)
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	c := NewContainer()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}
