package idgen

import (
	"strings"
	"testing"
)

func TestGeneratorsProduceDistinctUUIDs(t *testing.T) {
	for name, gen := range map[string]Generator{"v7": UUIDv7(), "random": Random()} {
		t.Run(name, func(t *testing.T) {
			seen := make(map[string]struct{})
			for i := 0; i < 100; i++ {
				id := gen()
				if _, err := Parse(id); err != nil {
					t.Fatalf("generated id %q is not a UUID: %v", id, err)
				}
				if _, ok := seen[id]; ok {
					t.Fatalf("duplicate id %q", id)
				}
				seen[id] = struct{}{}
			}
		})
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("trc_", func() string { return "abc" })
	if got := gen(); got != "trc_abc" {
		t.Fatalf("unexpected id %q", got)
	}
	if !strings.HasPrefix(Prefixed("rpt_", UUIDv7())(), "rpt_") {
		t.Fatal("expected prefix")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("../../etc/passwd"); err == nil {
		t.Fatal("expected parse error")
	}
}
