package main

import "testing"

func TestLoadFixtureParsesCruiseBlock(t *testing.T) {
	blocks, err := loadFixture("testdata/cruise.json")
	if err != nil {
		t.Fatalf("loadFixture() error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	b := blocks[0]
	if b.StepEventCount != 100 || b.Steps[0] != 100 {
		t.Fatalf("unexpected block: %+v", b)
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := loadFixture("testdata/does-not-exist.json"); err == nil {
		t.Fatalf("expected an error loading a nonexistent fixture")
	}
}
