package types

import "testing"

func TestStringRendersOptionalAndList(t *testing.T) {
	ty := Optional(List(Simple(Int)))
	if got, want := ty.String(), "List[Int]?"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestJoinMergesUnknownToOther(t *testing.T) {
	if got := Join(Unknown(), Simple(String)); got.Kind != String {
		t.Fatalf("Join(Unknown, String) = %v, want String", got)
	}
	if got := Join(Simple(Int), Unknown()); got.Kind != Int {
		t.Fatalf("Join(Int, Unknown) = %v, want Int", got)
	}
}

func TestJoinOfUnequalTypesIsUnknown(t *testing.T) {
	got := Join(Simple(Int), Simple(String))
	if got.Kind != UnknownKind {
		t.Fatalf("Join(Int, String) = %v, want Unknown", got)
	}
}

func TestEqualStructComparesNameAndTypeArgs(t *testing.T) {
	a := Struct("Box", []Type{Simple(Int)})
	b := Struct("Box", []Type{Simple(Int)})
	c := Struct("Box", []Type{Simple(String)})
	if !Equal(a, b) {
		t.Fatalf("expected Box[Int] == Box[Int]")
	}
	if Equal(a, c) {
		t.Fatalf("expected Box[Int] != Box[String]")
	}
}
