package domain

import (
	"fmt"
	"strconv"
)

// DecisionType は決定の種類です。
type DecisionType string

const (
	DecisionMove   DecisionType = "move"
	DecisionSwitch DecisionType = "switch"
)

// Decision はエージェントが選んだ1手です。返された後は不変で、
// 提出前に必ずLegalActionSetに対して検証されます。
type Decision struct {
	Type      DecisionType `json:"type"`
	Move      string       `json:"move,omitempty"`
	Tera      bool         `json:"tera,omitempty"`
	Switch    string       `json:"switch,omitempty"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// Command は決定をエンジンのchooseコマンドへ整形します。
// requestにrqidが付いていた場合はそれを末尾に添えます。
func (d Decision) Command(legal LegalActionSet) string {
	var cmd string
	switch d.Type {
	case DecisionSwitch:
		cmd = fmt.Sprintf("/choose %s switch %s", legal.Side, d.Switch)
	default:
		cmd = fmt.Sprintf("/choose %s move %s", legal.Side, d.Move)
		if d.Tera {
			cmd += " terastallize"
		}
	}
	if legal.RQID != 0 {
		cmd += "|" + strconv.Itoa(legal.RQID)
	}
	return cmd
}

func (d Decision) String() string {
	if d.Type == DecisionSwitch {
		return "switch " + d.Switch
	}
	if d.Tera {
		return "move " + d.Move + " (tera)"
	}
	return "move " + d.Move
}
