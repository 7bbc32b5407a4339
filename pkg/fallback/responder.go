// Package fallback answers common guest questions from a fixed table of
// canned, topic-matched responses.
package fallback

import (
	"fmt"
	"strings"

	"github.com/pario-ai/bistro/pkg/models"
)

// Entry pairs a topic with its keywords and canned answer.
type Entry struct {
	Topic    models.Topic
	Keywords []string
	Answer   string
}

// Answer is a matched canned response.
type Answer struct {
	Topic models.Topic
	Text  string
}

// Responder matches free text against an ordered keyword table.
// It is immutable after construction and safe for concurrent use.
type Responder struct {
	entries []Entry
	contact string
}

// New builds a Responder from entries. Order is significant: the first
// entry with a matching keyword wins.
func New(entries []Entry, contact string) *Responder {
	cp := make([]Entry, len(entries))
	for i, e := range entries {
		kws := make([]string, len(e.Keywords))
		for j, kw := range e.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		cp[i] = Entry{Topic: e.Topic, Keywords: kws, Answer: e.Answer}
	}
	return &Responder{entries: cp, contact: contact}
}

// Default returns the restaurant's standard answer table.
func Default(phone string) *Responder {
	return New(defaultEntries(phone), ContactMessage(phone))
}

// ContactMessage is the answer given when nothing else fits.
func ContactMessage(phone string) string {
	return fmt.Sprintf("Przepraszamy, nie potrafimy teraz odpowiedzieć na to pytanie. "+
		"Prosimy o kontakt telefoniczny: %s.", phone)
}

// Match returns the answer of the first topic whose keywords occur in text.
func (r *Responder) Match(text string) (Answer, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return Answer{}, false
	}
	for _, e := range r.entries {
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				return Answer{Topic: e.Topic, Text: e.Answer}, true
			}
		}
	}
	return Answer{}, false
}

// ContactMessage returns the static "call us" answer.
func (r *Responder) ContactMessage() string {
	return r.contact
}

// Topics lists the topics in match order.
func (r *Responder) Topics() []models.Topic {
	out := make([]models.Topic, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Topic
	}
	return out
}

func defaultEntries(phone string) []Entry {
	return []Entry{
		{
			Topic:    models.TopicMenu,
			Keywords: []string{"menu", "karta dań", "karcie", "dania", "danie", "jedzenie", "zjeść", "pizza", "makaron", "wegetaria", "wegańsk"},
			Answer: "Nasze menu obejmuje pizze z pieca opalanego drewnem, świeże makarony, sałatki " +
				"oraz dania wegetariańskie i wegańskie. Aktualna karta jest dostępna na stronie w zakładce Menu.",
		},
		{
			Topic:    models.TopicHours,
			Keywords: []string{"godzin", "otwar", "czynne", "zamyka", "hours", "open"},
			Answer:   "Jesteśmy otwarci od poniedziałku do czwartku w godz. 12:00–22:00, w piątek i sobotę 12:00–23:00, w niedzielę 13:00–21:00.",
		},
		{
			Topic:    models.TopicLocation,
			Keywords: []string{"adres", "gdzie", "dojazd", "dojechać", "parking", "lokalizac"},
			Answer:   "Znajdziesz nas przy ul. Przykładowej 1. Obok restauracji jest bezpłatny parking dla gości.",
		},
		{
			Topic:    models.TopicDelivery,
			Keywords: []string{"dostaw", "dowóz", "dowoz", "na wynos", "delivery"},
			Answer:   "Dowozimy w promieniu 5 km. Minimalna wartość zamówienia to 40 zł, a dostawa powyżej 80 zł jest bezpłatna.",
		},
		{
			Topic:    models.TopicReservation,
			Keywords: []string{"rezerw", "stolik", "booking"},
			Answer:   fmt.Sprintf("Stolik zarezerwujesz przez formularz na stronie lub telefonicznie pod numerem %s.", phone),
		},
		{
			Topic:    models.TopicPayment,
			Keywords: []string{"płat", "płac", "blik", "gotówk"},
			Answer:   "Akceptujemy gotówkę, karty płatnicze, BLIK oraz płatności online przy zamówieniach z dostawą.",
		},
		{
			Topic:    models.TopicLoyalty,
			Keywords: []string{"punkt", "lojaln", "nagrod", "program"},
			Answer:   "W programie lojalnościowym otrzymujesz 1 punkt za każde wydane 10 zł. Punkty wymienisz na nagrody w panelu klienta.",
		},
		{
			Topic:    models.TopicEvents,
			Keywords: []string{"wydarze", "event", "impreza", "urodzin", "koncert"},
			Answer:   "Organizujemy imprezy okolicznościowe i urodziny. Aktualne wydarzenia publikujemy w zakładce Wydarzenia.",
		},
		{
			Topic:    models.TopicPromotions,
			Keywords: []string{"promoc", "rabat", "zniżk", "kupon", "okazj"},
			Answer:   "Aktualne promocje: od poniedziałku do czwartku druga pizza za pół ceny, a w godz. 12–15 lunch dnia w specjalnej cenie.",
		},
	}
}
