// Package report renders the outcome of a run.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/mildmongrel/thicket/internal/session"
)

type Summary struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Failed   int `json:"failed"`
	// sessions that stopped because the connection went away
	Lost    int `json:"lost"`
	Running int `json:"running"`
	// sessions that made at least one pick
	Drafted int `json:"drafted"`

	Sent       int64 `json:"sent"`
	Received   int64 `json:"received"`
	KeepAlives int64 `json:"keep_alives"`
	Chats      int64 `json:"chats"`
	Picks      int64 `json:"picks"`
}

func Summarize(snaps []session.Snapshot) Summary {
	var sum Summary
	for _, snap := range snaps {
		sum.Total++
		switch snap.State {
		case session.StateComplete:
			if snap.Err != "" {
				sum.Lost++
			} else {
				sum.Complete++
			}
		case session.StateFailed:
			sum.Failed++
		default:
			sum.Running++
		}
		if snap.Picks > 0 {
			sum.Drafted++
		}

		sum.Sent += snap.Sent
		sum.Received += snap.Received
		sum.KeepAlives += snap.KeepAlives
		sum.Chats += snap.Chats
		sum.Picks += snap.Picks
	}
	return sum
}

// Render writes one row per session followed by a totals footer.
func Render(w io.Writer, snaps []session.Snapshot) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Session", "State", "Room", "Sent", "Recv", "Picks", "Chats", "Duration", "Error"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, snap := range snaps {
		room := "-"
		if snap.RoomID != 0 {
			room = fmt.Sprintf("%d", snap.RoomID)
		}
		errMsg := "-"
		if snap.Err != "" {
			errMsg = snap.Err
		}

		tw.Append([]string{
			snap.Name,
			snap.State.String(),
			room,
			fmt.Sprintf("%d", snap.Sent),
			fmt.Sprintf("%d", snap.Received),
			fmt.Sprintf("%d", snap.Picks),
			fmt.Sprintf("%d", snap.Chats),
			snap.Duration().Round(time.Millisecond).String(),
			errMsg,
		})
	}

	sum := Summarize(snaps)
	tw.SetFooter([]string{
		fmt.Sprintf("%d sessions", sum.Total),
		fmt.Sprintf("%d ok / %d lost / %d failed", sum.Complete, sum.Lost, sum.Failed),
		fmt.Sprintf("%d drafted", sum.Drafted),
		fmt.Sprintf("%d", sum.Sent),
		fmt.Sprintf("%d", sum.Received),
		fmt.Sprintf("%d", sum.Picks),
		fmt.Sprintf("%d", sum.Chats),
		"",
		"",
	})

	tw.Render()
}
