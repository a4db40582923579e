package mail

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/world"
)

var (
	ErrNotPlayer        = errors.New("mail: only players use the post office")
	ErrLevel            = errors.New("mail: level too low to send mail")
	ErrNoAddressee      = errors.New("mail: no addressee given")
	ErrPostage          = errors.New("mail: cannot afford the stamp")
	ErrUnknownRecipient = errors.New("mail: no one by that name is registered")
)

// Directory resolves player names and ids. The player file satisfies it.
type Directory interface {
	IDByName(name string) int64
	NameByID(id int64) (string, bool)
}

// Format renders the letter the way it is printed on a piece of mail.
func (l Letter) Format(dir Directory) string {
	return fmt.Sprintf(" * * * * Midgaard Mail System * * * *\r\n"+
		"Date: %s\r\n"+
		"  To: %s\r\n"+
		"From: %s\r\n"+
		"\r\n"+
		"%s",
		l.Sent.Format(time.ANSIC), nameOr(dir, l.To), nameOr(dir, l.From), l.Body)
}

func nameOr(dir Directory, id int64) string {
	if dir != nil {
		if name, ok := dir.NameByID(id); ok {
			return name
		}
	}
	return "Unknown"
}

// Postmaster applies the post office rules on top of a Store: minimum level,
// stamp price and registered recipients.
type Postmaster struct {
	store *Store
	dir   Directory
	cfg   config.MailConfig
	bus   *event.Bus
	log   *zap.Logger
}

func NewPostmaster(store *Store, dir Directory, cfg config.MailConfig, bus *event.Bus, log *zap.Logger) *Postmaster {
	return &Postmaster{store: store, dir: dir, cfg: cfg, bus: bus, log: log}
}

func (p *Postmaster) player(w *world.World, h arena.Handle) (*world.Character, error) {
	if p.store.Disabled() {
		return nil, ErrDisabled
	}
	c, err := w.Char(h)
	if err != nil {
		return nil, err
	}
	if c.IsNPC() {
		return nil, ErrNotPlayer
	}
	return c, nil
}

// Post sends text from sender to the player named recipient and takes the
// stamp price from the sender's gold once the message is stored.
func (p *Postmaster) Post(w *world.World, sender arena.Handle, recipient, text string) error {
	c, err := p.player(w, sender)
	if err != nil {
		return err
	}
	if int(c.Level) < p.cfg.MinLevel {
		return ErrLevel
	}
	if recipient == "" {
		return ErrNoAddressee
	}
	if c.Points.Gold < p.cfg.StampPrice {
		return ErrPostage
	}
	to := p.dir.IDByName(recipient)
	if to < 0 {
		return ErrUnknownRecipient
	}
	if err := p.store.Send(to, c.IDNum, text); err != nil {
		return err
	}
	c.Points.Gold -= p.cfg.StampPrice
	if p.bus != nil {
		event.Emit(p.bus, event.MailDelivered{To: to, From: c.IDNum})
	}
	p.log.Debug("信件已寄出", zap.String("from", c.Name), zap.String("to", recipient))
	return nil
}

// Check reports whether the character has mail waiting.
func (p *Postmaster) Check(w *world.World, h arena.Handle) (bool, error) {
	c, err := p.player(w, h)
	if err != nil {
		return false, err
	}
	return p.store.HasMail(c.IDNum), nil
}

// Collect hands every waiting message to the character as a piece of mail
// in its inventory and returns how many were handed over.
func (p *Postmaster) Collect(w *world.World, h arena.Handle) (int, error) {
	c, err := p.player(w, h)
	if err != nil {
		return 0, err
	}
	if !p.store.HasMail(c.IDNum) {
		return 0, ErrNoMail
	}
	n := 0
	for p.store.HasMail(c.IDNum) {
		letter, err := p.store.Receive(c.IDNum)
		if err != nil {
			return n, err
		}
		note := w.NewNote("mail paper letter", "a piece of mail",
			"Someone has left a piece of mail here.", letter.Format(p.dir))
		if err := w.ObjToChar(note, h); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
