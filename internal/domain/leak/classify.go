package leak

import "github.com/okian/drillcore/internal/domain/model"

type pair struct {
	chosen, ideal model.Action
}

// table maps (chosen, ideal) to a category. Direction matters: folding a
// call spot is OVER_FOLDING while calling a fold spot is CALLING_STATION.
var table = map[pair]model.LeakCategory{ //nolint:gochecknoglobals // fixed lookup
	{model.ActionFold, model.ActionCheck}: model.LeakOverFolding,
	{model.ActionFold, model.ActionCall}:  model.LeakOverFolding,
	{model.ActionFold, model.ActionBet}:   model.LeakOverFolding,
	{model.ActionFold, model.ActionRaise}: model.LeakOverFolding,
	{model.ActionFold, model.ActionAllIn}: model.LeakOverFolding,

	{model.ActionCall, model.ActionFold}: model.LeakCallingStation,

	{model.ActionCheck, model.ActionBet}:   model.LeakPassivePlay,
	{model.ActionCheck, model.ActionRaise}: model.LeakPassivePlay,
	{model.ActionCheck, model.ActionAllIn}: model.LeakPassivePlay,
	{model.ActionCall, model.ActionRaise}:  model.LeakPassivePlay,
	{model.ActionCall, model.ActionAllIn}:  model.LeakPassivePlay,

	{model.ActionBet, model.ActionFold}:    model.LeakOverAggression,
	{model.ActionBet, model.ActionCheck}:   model.LeakOverAggression,
	{model.ActionRaise, model.ActionFold}:  model.LeakOverAggression,
	{model.ActionRaise, model.ActionCall}:  model.LeakOverAggression,
	{model.ActionAllIn, model.ActionFold}:  model.LeakOverAggression,
	{model.ActionAllIn, model.ActionCall}:  model.LeakOverAggression,
	{model.ActionAllIn, model.ActionBet}:   model.LeakOverAggression,
	{model.ActionAllIn, model.ActionRaise}: model.LeakOverAggression,
}

// Classify returns the category of a mistake, false when the pair is not a leak.
func Classify(chosen, ideal model.Action) (model.LeakCategory, bool) {
	c, ok := table[pair{chosen, ideal}]
	return c, ok
}

var remediation = map[model.LeakCategory]string{ //nolint:gochecknoglobals // fixed lookup
	model.LeakOverFolding:    "clinic-01",
	model.LeakPassivePlay:    "clinic-02",
	model.LeakOverAggression: "clinic-03",
	model.LeakCallingStation: "clinic-05",
}

// RemediationID names the drill that targets category c.
func RemediationID(c model.LeakCategory) string {
	return remediation[c]
}
