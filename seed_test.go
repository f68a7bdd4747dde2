package banksy

import (
	"testing"
)

func TestDeriveSeed(t *testing.T) {
	a := deriveSeed(42, saltCluster, 1, 2, 3)
	b := deriveSeed(42, saltCluster, 1, 2, 3)
	if a != b {
		t.Fatal("derivation is not pure")
	}

	if deriveSeed(42, saltPCA, 1, 2, 3) == a {
		t.Error("different salts collide")
	}
	if deriveSeed(43, saltCluster, 1, 2, 3) == a {
		t.Error("different base seeds collide")
	}
	if deriveSeed(42, saltCluster, 1, 2, 4) == a {
		t.Error("different fields collide")
	}
	if deriveSeed(42, saltCluster, 1, 2) == a {
		t.Error("dropped field collides")
	}
}

func TestComboSeedBits(t *testing.T) {
	base := ParameterCombo{
		KGeom:      [2]int{15, 30},
		UseAGF:     true,
		Lambda:     0.2,
		KNeighbors: 50,
		Resolution: 1.0,
		Algorithm:  AlgorithmLouvain,
		Seed:       7,
	}

	same := base
	if deriveSeed(base.Seed, saltCluster, base.seedBits()...) !=
		deriveSeed(same.Seed, saltCluster, same.seedBits()...) {
		t.Fatal("equal combos derive different seeds")
	}

	bumped := base
	bumped.Lambda = 0.8
	if deriveSeed(base.Seed, saltCluster, base.seedBits()...) ==
		deriveSeed(bumped.Seed, saltCluster, bumped.seedBits()...) {
		t.Error("lambda change does not change the derived seed")
	}

	noAGF := base
	noAGF.UseAGF = false
	noAGF.KGeom[1] = 0
	if deriveSeed(base.Seed, saltCluster, base.seedBits()...) ==
		deriveSeed(noAGF.Seed, saltCluster, noAGF.seedBits()...) {
		t.Error("feature-level change does not change the derived seed")
	}
}

func TestBoolBit(t *testing.T) {
	if boolBit(true) != 1 || boolBit(false) != 0 {
		t.Fatal("boolBit broken")
	}
}
