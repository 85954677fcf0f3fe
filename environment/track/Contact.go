package track

import "github.com/ByteArena/box2d"

// contactDetector forwards the car's gate crossings and wall contacts
// from the physics world to the car
type contactDetector struct {
	car *Car
}

func newContactDetector(c *Car) *contactDetector {
	return &contactDetector{c}
}

func (c *contactDetector) BeginContact(contact box2d.B2ContactInterface) {
	fixA, fixB := contact.GetFixtureA(), contact.GetFixtureB()

	var other *box2d.B2Fixture
	if fixA.GetBody() == c.car.body {
		other = fixB
	} else if fixB.GetBody() == c.car.body {
		other = fixA
	} else {
		return
	}

	if other.IsSensor() {
		if n, ok := other.GetUserData().(int); ok {
			c.car.onTrigger(n)
		}
		return
	}

	if c.car.isWall(other.GetBody()) {
		c.car.onContact()
	}
}

func (c *contactDetector) EndContact(contact box2d.B2ContactInterface) {}

func (c *contactDetector) PreSolve(contact box2d.B2ContactInterface,
	oldManifold box2d.B2Manifold) {
}

func (c *contactDetector) PostSolve(contact box2d.B2ContactInterface,
	impulse *box2d.B2ContactImpulse) {
}
