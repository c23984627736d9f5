package cmd

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var (
	predictKind  = predict.Set{"dividend", "bonus", "rights"}
	predictStore = predict.Or(predict.Files("*.jsonl"), predict.Files("*.db"))
)

// Completion is the shell completion of lotctl. Install it with
// COMP_INSTALL=1 lotctl.
func Completion() *complete.Command {
	global := map[string]complete.Predictor{
		"store": predictStore,
		"env":   predict.Files("*.env"),
		"v":     predict.Nothing,
	}
	trade := map[string]complete.Predictor{
		"d":      predict.Something,
		"h":      predict.Something,
		"s":      predict.Something,
		"n":      predict.Something,
		"q":      predict.Something,
		"p":      predict.Something,
		"market": predict.Set{"SH", "SZ", "BJ"},
		"m":      predict.Something,
	}
	position := map[string]complete.Predictor{
		"h": predict.Something,
		"s": predict.Something,
	}
	return &complete.Command{
		Flags: global,
		Sub: map[string]*complete.Command{
			"buy":  {Flags: trade},
			"sell": {Flags: trade},
			"action": {Flags: map[string]complete.Predictor{
				"d": predict.Something,
				"s": predict.Something,
				"k": predictKind,
				"a": predict.Something,
				"r": predict.Something,
				"p": predict.Something,
				"m": predict.Something,
			}},
			"summary": {Flags: map[string]complete.Predictor{
				"d":     predict.Something,
				"h":     predict.Something,
				"s":     predict.Something,
				"price": predict.Something,
			}},
			"lots": {Flags: map[string]complete.Predictor{
				"d":   predict.Something,
				"h":   predict.Something,
				"s":   predict.Something,
				"all": predict.Nothing,
			}},
			"history":  {Flags: position},
			"topic":    {Args: predict.Set{"fifo", "fees", "settlement", "actions", "configuration"}},
			"help":     {Args: predict.Set{"buy", "sell", "action", "summary", "lots", "history"}},
			"flags":    {},
			"commands": {},
		},
	}
}
