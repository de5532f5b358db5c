package segment

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func outcomes(idx ...int) []Outcome {
	out := make([]Outcome, len(idx))
	for i, n := range idx {
		out[i] = Outcome{Index: n, Bytes: []byte{byte('a' + n)}}
	}
	return out
}

func setOf(items []Outcome) *SuccessSet {
	s := &SuccessSet{}
	for _, o := range items {
		s.Add(o)
	}
	return s
}

func TestAssignIndices(t *testing.T) {
	ds, err := AssignIndices([]string{"a.ts", "b.ts", "c.ts"}, []float64{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range ds {
		if d.Index != i {
			t.Errorf("ds[%d].Index = %d", i, d.Index)
		}
	}
	if ds[0].Duration != 4 || ds[2].Duration != 0 {
		t.Errorf("durations = %v, %v", ds[0].Duration, ds[2].Duration)
	}
}

func TestAssignIndices_empty(t *testing.T) {
	ds, err := AssignIndices(nil, nil)
	if err != nil || len(ds) != 0 {
		t.Fatalf("AssignIndices(nil) = %v, %v", ds, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		ds   []Descriptor
		want error
	}{
		{"dense", []Descriptor{{Index: 1}, {Index: 0}, {Index: 2}}, nil},
		{"duplicate", []Descriptor{{Index: 0}, {Index: 0}}, ErrDuplicateIndex},
		{"gap", []Descriptor{{Index: 0}, {Index: 2}}, ErrIndexGap},
		{"negative", []Descriptor{{Index: -1}}, ErrIndexGap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ds)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSuccessSet_dropsFailures(t *testing.T) {
	s := &SuccessSet{}
	s.Add(Outcome{Index: 0, Bytes: []byte("A")})
	if s.Add(Outcome{Index: 1, Err: errors.New("boom")}) {
		t.Error("failed outcome must not be kept")
	}
	s.Add(Outcome{Index: 2, Bytes: []byte("CC")})
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if s.Bytes() != 3 {
		t.Errorf("Bytes = %d, want 3", s.Bytes())
	}
}

func TestOrder_permutationInvariant(t *testing.T) {
	want := Order(setOf(outcomes(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)))
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		in := outcomes(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
		r.Shuffle(len(in), func(i, j int) { in[i], in[j] = in[j], in[i] })
		got := Order(setOf(in))
		if !bytes.Equal(bytes.Join(got, nil), bytes.Join(want, nil)) {
			t.Fatalf("trial %d: order depends on arrival order: %q", trial, bytes.Join(got, nil))
		}
	}
}

func TestOrder_idempotent(t *testing.T) {
	s := setOf(outcomes(3, 0, 2))
	once := Sorted(s)
	twice := Sorted(setOf(once))
	for i := range once {
		if once[i].Index != twice[i].Index {
			t.Fatalf("second pass reordered: %v vs %v", once, twice)
		}
	}
	if got := string(bytes.Join(Order(s), nil)); got != "acd" {
		t.Errorf("Order = %q, want acd", got)
	}
}

func TestOrder_emptySet(t *testing.T) {
	if got := Order(&SuccessSet{}); len(got) != 0 {
		t.Errorf("Order(empty) = %v", got)
	}
	if got := Order(nil); len(got) != 0 {
		t.Errorf("Order(nil) = %v", got)
	}
}
