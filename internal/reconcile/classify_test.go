package reconcile

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "routepay/internal/model"
)

func row(seq int, addr, name, unit, status string) *model.Delivery {
    return &model.Delivery{
        DriverID: "d1", SequenceNumber: seq,
        Address: addr, RecipientName: name, AddressUnit: unit, Status: status,
        FinalResult: model.ResultNotAssigned,
    }
}

func TestIsFailureStatus(t *testing.T) {
    assert.True(t, IsFailureStatus("Failed"))
    assert.True(t, IsFailureStatus("Delivery FAILED - no access"))
    assert.True(t, IsFailureStatus("fail"))
    assert.False(t, IsFailureStatus("Delivered"))
    assert.False(t, IsFailureStatus(""))
}

func TestClassifyDefaults(t *testing.T) {
    rows := []*model.Delivery{
        row(1, "", "", "", ""),                       // untouched
        row(2, "9 Pine Rd", "Lee", "", "Failed"),     // failure marker
        row(3, "5 Oak St", "Cho", "", "Delivered"),   // delivered
    }
    Classify(rows)
    assert.Equal(t, model.ResultNoScanned, rows[0].FinalResult)
    assert.Equal(t, model.ResultFailedAttempt, rows[1].FinalResult)
    assert.Equal(t, model.ResultFirstStop, rows[2].FinalResult)
}

func TestClassifyDuplicateGroups(t *testing.T) {
    rows := []*model.Delivery{
        row(4, "5 Oak St", "Cho", "", "Delivered"),
        row(1, "5 Oak St", "Cho", "", "Delivered"),
        row(2, "5 Oak St", "Cho", "2B", "Delivered"), // different unit, own group
        row(3, "9 Pine Rd", "Lee", "", "Delivered"),
    }
    Classify(rows)

    byseq := map[int]model.FinalResult{}
    for _, d := range rows {
        byseq[d.SequenceNumber] = d.FinalResult
    }
    // Lowest sequence in the (address, recipient, unit) group wins first_stop.
    assert.Equal(t, model.ResultFirstStop, byseq[1])
    assert.Equal(t, model.ResultDoubleStop, byseq[4])
    assert.Equal(t, model.ResultFirstStop, byseq[2])
    assert.Equal(t, model.ResultFirstStop, byseq[3])
}

func TestClassifyDifferentDriversDoNotGroup(t *testing.T) {
    a := row(1, "5 Oak St", "Cho", "", "Delivered")
    b := row(2, "5 Oak St", "Cho", "", "Delivered")
    b.DriverID = "d2"
    Classify([]*model.Delivery{a, b})
    assert.Equal(t, model.ResultFirstStop, a.FinalResult)
    assert.Equal(t, model.ResultFirstStop, b.FinalResult)
}

func TestClassifyIsIdempotent(t *testing.T) {
    rows := []*model.Delivery{
        row(1, "5 Oak St", "Cho", "", "Delivered"),
        row(2, "5 Oak St", "Cho", "", "Delivered"),
        row(3, "", "", "", ""),
        row(4, "9 Pine Rd", "Lee", "", "Failed"),
    }
    Classify(rows)
    first := make([]model.FinalResult, len(rows))
    for i, d := range rows {
        first[i] = d.FinalResult
    }
    // Reset and reclassify the same merged state.
    for _, d := range rows {
        d.FinalResult = model.ResultNotAssigned
    }
    Classify(rows)
    for i, d := range rows {
        require.Equal(t, first[i], d.FinalResult)
    }
}

func TestCount(t *testing.T) {
    rows := []*model.Delivery{
        row(1, "5 Oak St", "Cho", "", "Delivered"),
        row(2, "5 Oak St", "Cho", "", "Delivered"),
        row(3, "", "", "", ""),
        row(4, "9 Pine Rd", "Lee", "", "Failed"),
        row(5, "22 Main St", "Diaz", "", "Delivered"),
    }
    Classify(rows)
    c := Count(rows)
    assert.Equal(t, 1, c.NoScanned)
    assert.Equal(t, 1, c.FailedAttempt)
    assert.Equal(t, 2, c.FirstStop)
    assert.Equal(t, 1, c.DS)
    assert.Equal(t, 3, c.Delivered)
}
