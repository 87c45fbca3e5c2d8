// SPDX-License-Identifier: MPL-2.0

package catalog

type (
	// Entry is one documentation topic bound to its owning package.
	Entry struct {
		// Name is the display name, see DisplayName.
		Name string
		// Topic is the help alias as reported by the engine.
		Topic string
		// Package owns the topic.
		Package string
	}

	// Key identifies an Entry. Display names are derived and may collide;
	// the package/topic pair does not.
	Key struct {
		Package string
		Topic   string
	}
)

// NewEntry builds an Entry, deriving its display name.
func NewEntry(pkg, topic string) Entry {
	return Entry{Name: DisplayName(pkg, topic), Topic: topic, Package: pkg}
}

// DisplayName returns pkg::topic. The topic is backtick-quoted unless it
// starts with an ASCII letter or a dot: topic "+" in base displays as
// base::`+`.
func DisplayName(pkg, topic string) string {
	if !bareTopic(topic) {
		topic = "`" + topic + "`"
	}
	return pkg + "::" + topic
}

// Key returns the identity of e.
func (e Entry) Key() Key {
	return Key{Package: e.Package, Topic: e.Topic}
}

func bareTopic(topic string) bool {
	if topic == "" {
		return false
	}
	c := topic[0]
	return c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
