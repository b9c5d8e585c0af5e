// Package hub fans ticket events and reminders out to live viewers. Staff
// displays subscribe by hospital/department; patients subscribe by their
// patient id.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

type Subscription struct {
	HospitalID string
	Department string
	PatientID  string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action     string `json:"action"`
	HospitalID string `json:"hospital_id"`
	Department string `json:"department"`
	PatientID  string `json:"patient_id"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// BroadcastEvent delivers a ticket change to every viewer whose
// subscription matches the event's partition or patient.
func (h *Hub) BroadcastEvent(event store.OutboxEvent) {
	var payload store.EventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		log.Printf("hub payload decode error: %v", err)
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.send(data, Subscription{
		HospitalID: payload.HospitalID,
		Department: payload.Department,
		PatientID:  payload.PatientID,
	})
}

// NotifyPatient implements notify.Broadcaster.
func (h *Hub) NotifyPatient(notification models.Notification) {
	envelope := struct {
		Type         string              `json:"type"`
		Notification models.Notification `json:"notification"`
	}{Type: "notification", Notification: notification}
	data, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	h.send(data, Subscription{PatientID: notification.PatientID})
}

func (h *Hub) send(payload []byte, meta Subscription) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func match(sub Subscription, meta Subscription) bool {
	if sub.PatientID != "" {
		return meta.PatientID == sub.PatientID
	}
	if sub.HospitalID != "" && meta.HospitalID != sub.HospitalID {
		return false
	}
	if sub.Department != "" && meta.Department != sub.Department {
		return false
	}
	return sub.HospitalID != "" || sub.Department != ""
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
