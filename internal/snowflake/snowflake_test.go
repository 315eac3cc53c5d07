package snowflake

import "testing"

func TestSetup(t *testing.T) {
	err := Setup(3)
	if err != nil {
		t.Error(err)
	}
}

func TestSetupTwiceFails(t *testing.T) {
	err := Setup(4)
	if err == nil {
		t.Error("expected second Setup call to fail, but it didn't")
	}
}

func TestGenerateMonotonic(t *testing.T) {
	var previous int64
	for i := 0; i < 1000; i++ {
		id, err := Generate()
		if err != nil {
			// increment overflow within one millisecond is a valid outcome
			return
		}
		if id <= previous {
			t.Fatalf("Generate() returned %d after %d, expected strictly increasing ids", id, previous)
		}
		previous = id
	}
}

func TestExtract(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	fields := Extract(id)
	if fields.WorkerID != 3 {
		t.Errorf("Extract(%d).WorkerID = %d, want 3", id, fields.WorkerID)
	}
	if fields.Timestamp <= 0 {
		t.Errorf("Extract(%d).Timestamp = %d, want positive", id, fields.Timestamp)
	}
}
