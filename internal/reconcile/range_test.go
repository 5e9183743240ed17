package reconcile

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
    cases := []struct {
        name                           string
        aStart, aEnd, bStart, bEnd int
        want                           bool
    }{
        {"identical", 1, 10, 1, 10, true},
        {"contained", 1, 50, 10, 20, true},
        {"straddle", 1, 10, 5, 15, true},
        {"shared boundary", 1, 50, 50, 80, true},
        {"single point both", 7, 7, 7, 7, true},
        {"abutting", 1, 50, 51, 80, false},
        {"disjoint", 1, 10, 20, 30, false},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
            // Overlap is symmetric.
            assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd))
        })
    }
}

func TestPackages(t *testing.T) {
    assert.Equal(t, 1, Packages(7, 7))
    assert.Equal(t, 50, Packages(1, 50))
    assert.Equal(t, 11, Packages(5, 15))
}

func TestMissingSeqs(t *testing.T) {
    have := map[int]bool{5: true, 6: true, 9: true}
    assert.Equal(t, []int{7, 8, 10}, MissingSeqs(have, 5, 10))
    assert.Empty(t, MissingSeqs(map[int]bool{1: true}, 1, 1))
    assert.Equal(t, []int{1, 2}, MissingSeqs(nil, 1, 2))
}

func TestInRange(t *testing.T) {
    assert.True(t, InRange(5, 5, 10))
    assert.True(t, InRange(10, 5, 10))
    assert.False(t, InRange(4, 5, 10))
    assert.False(t, InRange(11, 5, 10))
}
