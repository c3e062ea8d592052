package tools

import (
	"time"
)

// DemoSession makes an example Session that's useful to have around.
//
// The scenario runs a little taco kitchen: an order is plated, two
// condiments race, a check gets comped, and a bell rings later.
func DemoSession() (*Session, error) {

	settled := func(id, status string) map[string]interface{} {
		return map[string]interface{}{
			"event":  "settled",
			"id":     id,
			"status": status,
		}
	}

	fulfilled := func(id string, value interface{}) map[string]interface{} {
		event := settled(id, "fulfilled")
		event["value"] = value
		return event
	}

	s := &Session{
		Name: "kitchen",
		Doc:  "A demo Session that covers most of the machinery.",
		Steps: []Step{
			{
				Doc: "Plate an order via a then guard.",
				Ops: []Op{
					{Make: "order"},
					{Then: &ChainOp{
						On:          "order",
						As:          "plated",
						GuardSource: `return {plated: _.value};`,
					}},
					{Fulfill: &FulfillOp{
						Id:    "order",
						Value: map[string]interface{}{"dish": "tacos"},
					}},
				},
				Expect: []Expectation{
					{
						Pattern: fulfilled("order", map[string]interface{}{"dish": "tacos"}),
					},
					{
						Doc:     "The guard's return becomes the derived value.",
						Pattern: fulfilled("plated", "?v"),
						GuardSource: `
var v = _.bindings["?v"];
if (!v.plated) { throw "not plated"; }
return true;
`,
					},
				},
			},
			{
				Doc: "Race two condiments.",
				Ops: []Op{
					{Make: "salsa"},
					{Make: "queso"},
					{Race: &GatherOp{
						Of: []string{"salsa", "queso"},
						As: "condiment",
					}},
					{Fulfill: &FulfillOp{Id: "salsa", Value: "salsa verde"}},
				},
				Expect: []Expectation{
					{Pattern: fulfilled("condiment", "salsa verde")},
				},
			},
			{
				Doc: "Gather the meal.",
				Ops: []Op{
					{All: &GatherOp{
						Of: []string{"order", "condiment"},
						As: "meal",
					}},
				},
				Expect: []Expectation{
					{
						Pattern: fulfilled("meal", []interface{}{
							map[string]interface{}{"dish": "tacos"},
							"salsa verde",
						}),
					},
				},
			},
			{
				Doc: "Comp the check, so nobody hears about the rejection.",
				Ops: []Op{
					{Make: "check"},
					{Catch: &ChainOp{
						On:          "check",
						As:          "comped",
						GuardSource: `return "on the house";`,
					}},
					{Reject: &RejectOp{Id: "check", Reason: "out of limes"}},
				},
				Expect: []Expectation{
					{Pattern: settled("check", "rejected")},
					{Pattern: fulfilled("comped", "on the house")},
					{
						Pattern: map[string]interface{}{"event": "unhandled"},
						Absent:  true,
					},
				},
			},
			{
				Doc: "Ring the bell later.",
				Ops: []Op{
					{Timer: &TimerOp{Id: "bell", Value: "ding", In: "20ms"}},
				},
			},
			{
				Doc:        "Hear the bell, and settle the books.",
				WaitBefore: 100 * time.Millisecond,
				Ops: []Op{
					{AllSettled: &GatherOp{
						Of: []string{"check", "comped", "bell"},
						As: "ledger",
					}},
				},
				Expect: []Expectation{
					{Pattern: fulfilled("bell", "ding")},
					{
						Pattern: fulfilled("ledger", []interface{}{
							map[string]interface{}{"status": "rejected", "reason": "out of limes"},
							map[string]interface{}{"status": "fulfilled", "value": "on the house"},
							map[string]interface{}{"status": "fulfilled", "value": "ding"},
						}),
					},
				},
			},
		},
	}

	if err := s.Compile(); err != nil {
		return nil, err
	}

	return s, nil
}
