// Package calendar lays appointments out on the daily room grid and the
// weekly list. The layout functions are pure; Service feeds them from the
// database and caches the result.
package calendar

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/pkg/civil"
)

// The daily grid covers start hours FirstHour through LastHour, so 08:00
// to 20:59. One minute is one unit of height.
const (
	FirstHour      = 8
	LastHour       = 20
	MinBlockHeight = 30
	GridHeight     = (LastHour - FirstHour + 1) * 60
)

// Palette holds the room colours, assigned by position in name order.
var Palette = []string{"blue", "green", "purple", "orange", "pink", "indigo", "teal", "red"}

var statusColors = map[appointments.Status]string{
	appointments.StatusScheduled:  "yellow",
	appointments.StatusInProgress: "blue",
	appointments.StatusDone:       "green",
	appointments.StatusCanceled:   "red",
}

// StatusColor returns the badge colour for a status, grey when unknown.
func StatusColor(s appointments.Status) string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "gray"
}

type Label struct {
	Client string `json:"client"`
	Doctor string `json:"doctor"`
	Time   string `json:"time"`
}

// Block is one appointment placed on the grid.
type Block struct {
	AppointmentID uuid.UUID           `json:"appointment_id"`
	RoomID        *uuid.UUID          `json:"room_id,omitempty"`
	Start         time.Time           `json:"start"`
	DurationMin   int                 `json:"duration_min"`
	Top           int                 `json:"top"`
	Height        int                 `json:"height"`
	Status        appointments.Status `json:"status"`
	StatusColor   string              `json:"status_color"`
	Label         Label               `json:"label"`
}

type Column struct {
	RoomID   uuid.UUID `json:"room_id"`
	RoomName string    `json:"room_name"`
	Location *string   `json:"location,omitempty"`
	Color    string    `json:"color"`
	Blocks   []Block   `json:"blocks"`
}

// Day is the daily grid. Appointments starting outside the grid hours are
// listed in OutsideWindow instead of being placed.
type Day struct {
	Date          civil.Date `json:"date"`
	FirstHour     int        `json:"first_hour"`
	LastHour      int        `json:"last_hour"`
	GridHeight    int        `json:"grid_height"`
	Columns       []Column   `json:"columns"`
	Unassigned    []Block    `json:"unassigned"`
	OutsideWindow []Block    `json:"outside_window"`
}

// Item is one line of the weekly list.
type Item struct {
	AppointmentID uuid.UUID           `json:"appointment_id"`
	Start         time.Time           `json:"start"`
	Time          string              `json:"time"`
	DurationMin   int                 `json:"duration_min"`
	Status        appointments.Status `json:"status"`
	StatusColor   string              `json:"status_color"`
	Client        string              `json:"client"`
	Doctor        string              `json:"doctor"`
	Room          string              `json:"room"`
	RoomColor     string              `json:"room_color,omitempty"`
}

type WeekDay struct {
	Date         civil.Date `json:"date"`
	Weekday      string     `json:"weekday"`
	Appointments []Item     `json:"appointments"`
}

type Week struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
	Days  []WeekDay  `json:"days"`
}

// sortedRooms returns a copy of rs in the room list order.
func sortedRooms(rs []*rooms.Room) []*rooms.Room {
	out := append([]*rooms.Room(nil), rs...)
	rooms.SortByName(out)
	return out
}

// RoomColors assigns each room a palette colour by its position in name
// order, wrapping after len(Palette) rooms.
func RoomColors(rs []*rooms.Room) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(rs))
	for i, r := range sortedRooms(rs) {
		out[r.ID] = Palette[i%len(Palette)]
	}
	return out
}

// Offset returns the block's top offset and whether the start time falls
// inside the grid hours. t must already be in the clinic zone.
func Offset(t time.Time) (int, bool) {
	h := t.Hour()
	if h < FirstHour || h > LastHour {
		return 0, false
	}
	return (h-FirstHour)*60 + t.Minute(), true
}

// Height returns the block height for a duration. Zero means the default
// duration; short appointments get the minimum height.
func Height(durationMin int) int {
	if durationMin == 0 {
		durationMin = appointments.DefaultDuration
	}
	return max(durationMin, MinBlockHeight)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newBlock(a *appointments.Appointment, loc *time.Location) (Block, bool) {
	start := a.Date.In(loc)
	top, ok := Offset(start)
	return Block{
		AppointmentID: a.ID,
		RoomID:        a.RoomID,
		Start:         start,
		DurationMin:   a.DurationMin,
		Top:           top,
		Height:        Height(a.DurationMin),
		Status:        a.Status,
		StatusColor:   StatusColor(a.Status),
		Label: Label{
			Client: deref(a.ClientName),
			Doctor: deref(a.DoctorName),
			Time:   start.Format("15:04"),
		},
	}, ok
}

func byStart(bs []Block) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].Start.Equal(bs[j].Start) {
			return bs[i].Start.Before(bs[j].Start)
		}
		return bs[i].AppointmentID.String() < bs[j].AppointmentID.String()
	})
}

// DailyLayout places the appointments of day on the room grid. day's
// location is the clinic zone; appointments not on that calendar date are
// ignored. Appointments with no room, or a room not in rs, go to
// Unassigned.
func DailyLayout(day time.Time, rs []*rooms.Room, appts []*appointments.Appointment) Day {
	loc := day.Location()
	date := civil.DateOf(day)
	colors := RoomColors(rs)

	columns := lo.Map(sortedRooms(rs), func(r *rooms.Room, _ int) Column {
		return Column{RoomID: r.ID, RoomName: r.Name, Location: r.Location, Color: colors[r.ID], Blocks: []Block{}}
	})
	index := make(map[uuid.UUID]int, len(columns))
	for i, c := range columns {
		index[c.RoomID] = i
	}

	out := Day{
		Date:          date,
		FirstHour:     FirstHour,
		LastHour:      LastHour,
		GridHeight:    GridHeight,
		Columns:       columns,
		Unassigned:    []Block{},
		OutsideWindow: []Block{},
	}
	for _, a := range appts {
		if civil.DateOf(a.Date.In(loc)) != date {
			continue
		}
		b, inWindow := newBlock(a, loc)
		if !inWindow {
			out.OutsideWindow = append(out.OutsideWindow, b)
			continue
		}
		if a.RoomID != nil {
			if i, ok := index[*a.RoomID]; ok {
				out.Columns[i].Blocks = append(out.Columns[i].Blocks, b)
				continue
			}
		}
		out.Unassigned = append(out.Unassigned, b)
	}

	for i := range out.Columns {
		byStart(out.Columns[i].Blocks)
	}
	byStart(out.Unassigned)
	byStart(out.OutsideWindow)
	return out
}

// WeekStart returns the Monday on or before t, at midnight in t's zone.
// Sunday counts as the seventh day of the week.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// WeeklyLayout lists the appointments of anchor's Monday-to-Sunday week,
// chronologically per day. Ties go by room order, then id; appointments
// without a room sort after those with one.
func WeeklyLayout(anchor time.Time, rs []*rooms.Room, appts []*appointments.Appointment) Week {
	loc := anchor.Location()
	start := WeekStart(anchor)
	colors := RoomColors(rs)
	order := make(map[uuid.UUID]int, len(rs))
	for i, r := range sortedRooms(rs) {
		order[r.ID] = i
	}
	roomRank := func(a *appointments.Appointment) int {
		if a.RoomID != nil {
			if i, ok := order[*a.RoomID]; ok {
				return i
			}
		}
		return len(rs)
	}

	byDate := lo.GroupBy(appts, func(a *appointments.Appointment) civil.Date {
		return civil.DateOf(a.Date.In(loc))
	})

	week := Week{
		Start: civil.DateOf(start),
		End:   civil.DateOf(start.AddDate(0, 0, 6)),
		Days:  make([]WeekDay, 7),
	}
	for i := range week.Days {
		day := start.AddDate(0, 0, i)
		list := append([]*appointments.Appointment(nil), byDate[civil.DateOf(day)]...)
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i], list[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			if ra, rb := roomRank(a), roomRank(b); ra != rb {
				return ra < rb
			}
			return a.ID.String() < b.ID.String()
		})
		week.Days[i] = WeekDay{
			Date:    civil.DateOf(day),
			Weekday: day.Weekday().String(),
			Appointments: lo.Map(list, func(a *appointments.Appointment, _ int) Item {
				st := a.Date.In(loc)
				it := Item{
					AppointmentID: a.ID,
					Start:         st,
					Time:          st.Format("15:04"),
					DurationMin:   a.DurationMin,
					Status:        a.Status,
					StatusColor:   StatusColor(a.Status),
					Client:        deref(a.ClientName),
					Doctor:        deref(a.DoctorName),
					Room:          deref(a.RoomName),
				}
				if a.RoomID != nil {
					it.RoomColor = colors[*a.RoomID]
				}
				return it
			}),
		}
	}
	return week
}
