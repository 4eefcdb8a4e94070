package candidate

import (
	"slices"
	"testing"
)

func testList() List {
	return List{
		{ExternalID: 1, Score: 0.5},
		{ExternalID: 2, Score: 0.9},
		{ExternalID: 3, Score: 0.7},
		{ExternalID: 4, Score: 0.9},
	}
}

func TestSortedByScore(t *testing.T) {
	l := testList()
	got := l.SortedByScore().BookIDs()
	want := []int{2, 4, 3, 1}
	if !slices.Equal(got, want) {
		t.Errorf("SortedByScore() = %v, want %v", got, want)
	}
	if l[0].ExternalID != 1 {
		t.Error("SortedByScore must not modify the receiver")
	}
}

func TestTop(t *testing.T) {
	l := testList()

	if got := l.Top(2).BookIDs(); !slices.Equal(got, []int{2, 4}) {
		t.Errorf("Top(2) = %v", got)
	}
	if got := l.Top(10); len(got) != 4 {
		t.Errorf("Top(10) len = %d, want 4", len(got))
	}
	if got := l.Top(0); len(got) != 0 {
		t.Errorf("Top(0) len = %d, want 0", len(got))
	}
	if got := List(nil).Top(3); len(got) != 0 {
		t.Errorf("nil Top(3) len = %d", len(got))
	}
}
